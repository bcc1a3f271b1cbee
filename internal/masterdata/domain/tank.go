package masterdata

import (
	"errors"
	"math"
	"time"

	"fuel-backoffice/internal/units"
)

// Tank is an underground storage tank holding one fuel product. Levels and
// capacity are kept in liters; VolumeUnit is the unit the site reports in.
// Geometry is in centimeters.
type Tank struct {
	ID             string
	PointOfSaleID  string
	Name           string
	ProductCode    string
	TankType       string
	VolumeUnit     units.Unit
	CapacityLiters float64
	LevelLiters    float64
	MinimumLiters  float64
	DiameterCM     float64
	MaxHeightCM    float64
	UpdatedAt      time.Time
}

// Validate checks tank invariants.
func (t Tank) Validate() error {
	if t.ID == "" {
		return errors.New("tank: empty id")
	}
	if t.PointOfSaleID == "" {
		return errors.New("tank: empty point of sale id")
	}
	if t.ProductCode == "" {
		return errors.New("tank: empty product code")
	}
	if t.CapacityLiters <= 0 {
		return errors.New("tank: capacity must be positive")
	}
	if t.LevelLiters < 0 || t.LevelLiters > t.CapacityLiters {
		return errors.New("tank: level outside [0, capacity]")
	}
	if t.VolumeUnit != "" && !t.VolumeUnit.Valid() {
		return &units.UnsupportedUnitError{Unit: string(t.VolumeUnit)}
	}
	return nil
}

// HasGeometry reports whether the tank carries cylinder dimensions.
func (t Tank) HasGeometry() bool {
	return t.DiameterCM > 0 && t.MaxHeightCM > 0
}

// ClampLevel bounds liters to [0, capacity] and reports whether it had to.
func (t Tank) ClampLevel(liters float64) (float64, bool) {
	if math.IsNaN(liters) || liters < 0 {
		return 0, true
	}
	if liters > t.CapacityLiters {
		return t.CapacityLiters, true
	}
	return liters, false
}

// FillPercent is the current level relative to capacity, 0..100.
func (t Tank) FillPercent() float64 {
	if t.CapacityLiters <= 0 {
		return 0
	}
	return units.Round2(t.LevelLiters / t.CapacityLiters * 100)
}

// BelowMinimum reports whether the level dropped under the configured minimum.
func (t Tank) BelowMinimum() bool {
	return t.MinimumLiters > 0 && t.LevelLiters < t.MinimumLiters
}

// LevelIn expresses the level in the tank's reporting unit.
func (t Tank) LevelIn() (float64, error) {
	unit := t.VolumeUnit
	if unit == "" {
		unit = units.Liter
	}
	return units.FromBase(t.LevelLiters, unit)
}

// Clone returns a copy safe to mutate.
func (t *Tank) Clone() *Tank {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
