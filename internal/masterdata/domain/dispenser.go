package masterdata

import (
	"errors"
	"fmt"
	"time"
)

// Dispenser is a pump island with one or more hoses.
type Dispenser struct {
	ID            string
	PointOfSaleID string
	Number        int
	Hoses         []Hose
}

// Hose is a nozzle bound to one product with a cumulative meter.
type Hose struct {
	ID              string
	DispenserID     string
	Number          int
	ProductCode     string
	PreviousReading float64
	CurrentReading  float64
	UpdatedAt       time.Time
}

// Validate checks dispenser invariants.
func (d Dispenser) Validate() error {
	if d.ID == "" {
		return errors.New("dispenser: empty id")
	}
	if d.PointOfSaleID == "" {
		return errors.New("dispenser: empty point of sale id")
	}
	if d.Number <= 0 {
		return errors.New("dispenser: number must be positive")
	}
	seen := make(map[int]struct{}, len(d.Hoses))
	for _, hose := range d.Hoses {
		if hose.ID == "" {
			return fmt.Errorf("dispenser %d: hose with empty id", d.Number)
		}
		if _, ok := seen[hose.Number]; ok {
			return fmt.Errorf("dispenser %d: duplicate hose %d", d.Number, hose.Number)
		}
		seen[hose.Number] = struct{}{}
	}
	return nil
}

// Hose returns the hose with the given number.
func (d *Dispenser) Hose(number int) (*Hose, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.Hoses {
		if d.Hoses[i].Number == number {
			return &d.Hoses[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy safe to mutate.
func (d *Dispenser) Clone() *Dispenser {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Hoses = append([]Hose(nil), d.Hoses...)
	return &cp
}

// ReadingHistory is one appended meter pair for a hose.
type ReadingHistory struct {
	ID              string
	HoseID          string
	ClosureID       string
	PreviousReading float64
	CurrentReading  float64
	Sold            float64
	Unit            string
	RecordedAt      time.Time
}
