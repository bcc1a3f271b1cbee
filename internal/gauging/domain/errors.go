package gauging

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCalibrationData indicates a tank has no calibration entries.
	ErrNoCalibrationData = errors.New("gauging: no calibration data")
	// ErrMalformedCalibrationCSV indicates an unusable calibration import.
	ErrMalformedCalibrationCSV = errors.New("gauging: malformed calibration csv")
	// ErrEmptyTankID indicates a missing tank id.
	ErrEmptyTankID = errors.New("gauging: empty tank id")
	// ErrTankNotFound indicates the tank is unknown.
	ErrTankNotFound = errors.New("gauging: tank not found")
	// ErrMissingGeometry indicates the tank has no cylinder dimensions.
	ErrMissingGeometry = errors.New("gauging: tank has no geometry")
)

// InvalidGeometryError reports unusable cylinder dimensions.
type InvalidGeometryError struct {
	Field string
	Value float64
}

func (e *InvalidGeometryError) Error() string {
	if e.Field == "height" {
		return fmt.Sprintf("gauging: invalid geometry: height must be non-negative, got %v", e.Value)
	}
	return fmt.Sprintf("gauging: invalid geometry: %s must be positive, got %v", e.Field, e.Value)
}

// DuplicateHeightError reports two entries at the same height.
type DuplicateHeightError struct {
	HeightCM float64
}

func (e *DuplicateHeightError) Error() string {
	return fmt.Sprintf("gauging: duplicate calibration height %v", e.HeightCM)
}
