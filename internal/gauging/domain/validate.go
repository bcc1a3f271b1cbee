package gauging

import (
	"fmt"
	"math"
)

// Limits are the tank figures a table is checked against. Zero values skip
// the corresponding check.
type Limits struct {
	CapacityLiters float64
	MaxHeightCM    float64
}

// Validation lists blocking errors and advisory warnings for a table.
type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether no blocking errors were found.
func (v Validation) Valid() bool { return len(v.Errors) == 0 }

// capacityTolerance is how far the last volume may exceed capacity before it is flagged.
const capacityTolerance = 0.01

// Validate checks entries, assumed sorted by height.
func Validate(entries []Entry, limits Limits) Validation {
	result := Validation{Errors: []string{}, Warnings: []string{}}
	if len(entries) == 0 {
		result.Errors = append(result.Errors, ErrNoCalibrationData.Error())
		return result
	}
	for i, entry := range entries {
		if entry.HeightCM < 0 || entry.VolumeLiters < 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: negative values (%v cm, %v L)", i, entry.HeightCM, entry.VolumeLiters))
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		if entry.HeightCM <= prev.HeightCM {
			result.Errors = append(result.Errors, fmt.Sprintf("entry %d: height %v not above %v", i, entry.HeightCM, prev.HeightCM))
		}
		if entry.VolumeLiters < prev.VolumeLiters {
			result.Warnings = append(result.Warnings, fmt.Sprintf("entry %d: volume decreases from %v to %v", i, prev.VolumeLiters, entry.VolumeLiters))
		}
	}
	if first := entries[0]; first.HeightCM > 0 || first.VolumeLiters > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("table starts at (%v cm, %v L), not the origin", first.HeightCM, first.VolumeLiters))
	}
	last := entries[len(entries)-1]
	if limits.MaxHeightCM > 0 && last.HeightCM < limits.MaxHeightCM {
		result.Warnings = append(result.Warnings, fmt.Sprintf("table ends at %v cm, tank height is %v cm", last.HeightCM, limits.MaxHeightCM))
	}
	if limits.CapacityLiters > 0 && last.VolumeLiters > limits.CapacityLiters*(1+capacityTolerance) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("table volume %v L exceeds capacity %v L", last.VolumeLiters, limits.CapacityLiters))
	}
	if gap := largestGap(entries); gap > 10 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("largest height gap is %v cm", gap))
	}
	return result
}

func largestGap(entries []Entry) float64 {
	gap := 0.0
	for i := 1; i < len(entries); i++ {
		gap = math.Max(gap, entries[i].HeightCM-entries[i-1].HeightCM)
	}
	return gap
}
