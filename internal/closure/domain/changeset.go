package closure

import (
	"context"

	masterdata "fuel-backoffice/internal/masterdata/domain"
)

// StockChange sets a product's stock, guarded by the value read.
type StockChange struct {
	ProductCode string  `json:"product_code"`
	Expected    float64 `json:"expected"`
	Stock       float64 `json:"stock"`
}

// TankLevelChange sets a tank's level, guarded by the value read.
type TankLevelChange struct {
	TankID   string  `json:"tank_id"`
	Expected float64 `json:"expected"`
	Level    float64 `json:"level"`
}

// HoseReadingChange advances a hose meter, guarded by the reading read.
type HoseReadingChange struct {
	HoseID          string  `json:"hose_id"`
	ExpectedCurrent float64 `json:"expected_current"`
	PreviousReading float64 `json:"previous_reading"`
	CurrentReading  float64 `json:"current_reading"`
}

// ChangeSet is every mutation of one closure, applied all or nothing.
type ChangeSet struct {
	Stock     []StockChange
	Tanks     []TankLevelChange
	Hoses     []HoseReadingChange
	Histories []masterdata.ReadingHistory
	Record    ClosureRecord
}

// Empty reports whether the change set carries no inventory mutation.
func (c ChangeSet) Empty() bool {
	return len(c.Stock) == 0 && len(c.Tanks) == 0 && len(c.Hoses) == 0
}

// Store commits change sets and serves closure records.
type Store interface {
	// Commit applies the change set atomically. A guard mismatch returns
	// ErrConcurrentModification and applies nothing.
	Commit(ctx context.Context, changes ChangeSet) error
	// GetRecord returns ErrRecordNotFound for unknown ids.
	GetRecord(ctx context.Context, id string) (*ClosureRecord, error)
	// ListRecords returns records of a point of sale, newest first.
	ListRecords(ctx context.Context, pointOfSaleID string, limit int) ([]ClosureRecord, error)
}
