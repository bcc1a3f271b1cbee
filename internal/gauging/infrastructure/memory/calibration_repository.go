package memory

import (
	"context"
	"sync"

	gauging "fuel-backoffice/internal/gauging/domain"
)

// CalibrationRepository keeps calibration tables in memory.
type CalibrationRepository struct {
	mu     sync.RWMutex
	tables map[string]gauging.Table
}

// NewCalibrationRepository constructs an empty repository.
func NewCalibrationRepository() *CalibrationRepository {
	return &CalibrationRepository{tables: make(map[string]gauging.Table)}
}

// LoadTable returns a copy of the stored table.
func (r *CalibrationRepository) LoadTable(_ context.Context, tankID string) (*gauging.Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.tables[tankID]
	if !ok {
		return nil, nil
	}
	table.Entries = append([]gauging.Entry(nil), table.Entries...)
	return &table, nil
}

// ReplaceTable swaps the stored table.
func (r *CalibrationRepository) ReplaceTable(_ context.Context, table gauging.Table) error {
	if table.TankID == "" {
		return gauging.ErrEmptyTankID
	}
	table.Entries = append([]gauging.Entry(nil), table.Entries...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[table.TankID] = table
	return nil
}
