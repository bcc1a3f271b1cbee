package gauging

import (
	"math"
	"sort"
	"time"
)

// Provenance records where a calibration table came from.
type Provenance string

const (
	ProvenanceGenerated Provenance = "generated"
	ProvenanceImported  Provenance = "imported"
)

// Entry maps a fluid height in centimeters to a volume in liters.
type Entry struct {
	HeightCM     float64 `json:"height_cm"`
	VolumeLiters float64 `json:"volume_liters"`
}

// Table is the calibration table of one tank, ordered by height.
type Table struct {
	TankID     string     `json:"tank_id"`
	Entries    []Entry    `json:"entries"`
	Provenance Provenance `json:"provenance"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewTable sorts entries by height and rejects duplicate heights.
func NewTable(tankID string, entries []Entry, provenance Provenance, updatedAt time.Time) (Table, error) {
	if tankID == "" {
		return Table{}, ErrEmptyTankID
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].HeightCM < sorted[j].HeightCM })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].HeightCM == sorted[i-1].HeightCM {
			return Table{}, &DuplicateHeightError{HeightCM: sorted[i].HeightCM}
		}
	}
	return Table{TankID: tankID, Entries: sorted, Provenance: provenance, UpdatedAt: updatedAt}, nil
}

// Lookup returns the volume at height. An exact entry wins; otherwise the
// neighbours are interpolated linearly. Outside the table the nearest single
// side is returned. The result is not rounded.
func (t Table) Lookup(heightCM float64) (float64, error) {
	return Lookup(t.Entries, heightCM)
}

// Lookup works on entries sorted by height.
func Lookup(entries []Entry, heightCM float64) (float64, error) {
	if math.IsNaN(heightCM) || heightCM < 0 {
		return 0, &InvalidGeometryError{Field: "height", Value: heightCM}
	}
	if len(entries) == 0 {
		return 0, ErrNoCalibrationData
	}
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].HeightCM >= heightCM })
	if idx < len(entries) && entries[idx].HeightCM == heightCM {
		return entries[idx].VolumeLiters, nil
	}
	switch {
	case idx == 0:
		return entries[0].VolumeLiters, nil
	case idx == len(entries):
		return entries[len(entries)-1].VolumeLiters, nil
	}
	lower := entries[idx-1]
	upper := entries[idx]
	span := upper.HeightCM - lower.HeightCM
	fraction := (heightCM - lower.HeightCM) / span
	return lower.VolumeLiters + fraction*(upper.VolumeLiters-lower.VolumeLiters), nil
}

// MaxHeight is the highest calibrated height, or 0 for an empty table.
func (t Table) MaxHeight() float64 {
	if len(t.Entries) == 0 {
		return 0
	}
	return t.Entries[len(t.Entries)-1].HeightCM
}
