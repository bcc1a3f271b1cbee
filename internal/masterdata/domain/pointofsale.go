package masterdata

import (
	"errors"
	"time"
)

// PointOfSale represents a fuel station site in masterdata.
type PointOfSale struct {
	ID        string
	TenantID  string
	Name      string
	Timezone  string
	Currency  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks point of sale invariants.
func (p PointOfSale) Validate() error {
	if p.ID == "" {
		return errors.New("point of sale: empty id")
	}
	if p.TenantID == "" {
		return errors.New("point of sale: empty tenant id")
	}
	if p.Name == "" {
		return errors.New("point of sale: empty name")
	}
	return nil
}
