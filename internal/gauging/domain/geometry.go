package gauging

import (
	"math"

	"fuel-backoffice/internal/units"
)

// ComputeVolume returns the liters held by an upright cylinder of the given
// diameter filled to height, both in centimeters, rounded to 2 decimals.
func ComputeVolume(diameterCM, heightCM float64) (float64, error) {
	if math.IsNaN(diameterCM) || diameterCM <= 0 {
		return 0, &InvalidGeometryError{Field: "diameter", Value: diameterCM}
	}
	if math.IsNaN(heightCM) || heightCM < 0 {
		return 0, &InvalidGeometryError{Field: "height", Value: heightCM}
	}
	radius := diameterCM / 2
	cubicCM := math.Pi * radius * radius * heightCM
	return units.Round2(cubicCM / 1000), nil
}

// GenerateEntries samples heights 0, increment, 2*increment ... up to
// maxHeight. The last sample is always exactly maxHeight.
func GenerateEntries(diameterCM, maxHeightCM, incrementCM float64) ([]Entry, error) {
	if math.IsNaN(diameterCM) || diameterCM <= 0 {
		return nil, &InvalidGeometryError{Field: "diameter", Value: diameterCM}
	}
	if math.IsNaN(maxHeightCM) || maxHeightCM <= 0 {
		return nil, &InvalidGeometryError{Field: "max height", Value: maxHeightCM}
	}
	if incrementCM == 0 {
		incrementCM = 1
	}
	if math.IsNaN(incrementCM) || incrementCM < 0 {
		return nil, &InvalidGeometryError{Field: "increment", Value: incrementCM}
	}

	steps := int(math.Floor(maxHeightCM/incrementCM + 1e-9))
	entries := make([]Entry, 0, steps+2)
	for i := 0; i <= steps; i++ {
		height := units.Round(float64(i)*incrementCM, 6)
		if height >= maxHeightCM {
			break
		}
		volume, err := ComputeVolume(diameterCM, height)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{HeightCM: height, VolumeLiters: volume})
	}
	volume, err := ComputeVolume(diameterCM, maxHeightCM)
	if err != nil {
		return nil, err
	}
	entries = append(entries, Entry{HeightCM: maxHeightCM, VolumeLiters: volume})
	return entries, nil
}
