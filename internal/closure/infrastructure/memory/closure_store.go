package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	closure "fuel-backoffice/internal/closure/domain"
	masterdatamemory "fuel-backoffice/internal/masterdata/infrastructure/memory"
)

// ClosureStore commits change sets against the in-memory master data store.
type ClosureStore struct {
	inventory *masterdatamemory.Store

	mu      sync.RWMutex
	records map[string]closure.ClosureRecord
}

// NewClosureStore constructs a store over the given inventory.
func NewClosureStore(inventory *masterdatamemory.Store) (*ClosureStore, error) {
	if inventory == nil {
		return nil, errors.New("closure store: nil inventory")
	}
	return &ClosureStore{
		inventory: inventory,
		records:   make(map[string]closure.ClosureRecord),
	}, nil
}

// Commit checks every guard before applying anything.
func (s *ClosureStore) Commit(ctx context.Context, changes closure.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if changes.Record.ID == "" {
		return errors.New("closure store: empty record id")
	}
	return s.inventory.Update(func(tx *masterdatamemory.Tx) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, exists := s.records[changes.Record.ID]; exists {
			return fmt.Errorf("closure store: record %s already exists", changes.Record.ID)
		}

		for _, change := range changes.Stock {
			product, ok := tx.Product(change.ProductCode)
			if !ok || product.Stock != change.Expected {
				return fmt.Errorf("%w: product %s", closure.ErrConcurrentModification, change.ProductCode)
			}
		}
		for _, change := range changes.Tanks {
			tank, ok := tx.Tank(change.TankID)
			if !ok || tank.LevelLiters != change.Expected {
				return fmt.Errorf("%w: tank %s", closure.ErrConcurrentModification, change.TankID)
			}
		}
		for _, change := range changes.Hoses {
			hose, ok := tx.Hose(change.HoseID)
			if !ok || hose.CurrentReading != change.ExpectedCurrent {
				return fmt.Errorf("%w: hose %s", closure.ErrConcurrentModification, change.HoseID)
			}
		}

		at := changes.Record.Metadata.ProcessedAt
		for _, change := range changes.Stock {
			product, _ := tx.Product(change.ProductCode)
			product.Stock = change.Stock
			tx.PutProduct(product)
		}
		for _, change := range changes.Tanks {
			tank, _ := tx.Tank(change.TankID)
			tank.LevelLiters = change.Level
			tank.UpdatedAt = at
			tx.PutTank(tank)
		}
		for _, change := range changes.Hoses {
			hose, _ := tx.Hose(change.HoseID)
			hose.PreviousReading = change.PreviousReading
			hose.CurrentReading = change.CurrentReading
			hose.UpdatedAt = at
			tx.PutHose(hose)
		}
		for _, entry := range changes.Histories {
			tx.AppendHistory(entry)
		}
		s.records[changes.Record.ID] = changes.Record
		return nil
	})
}

func (s *ClosureStore) GetRecord(_ context.Context, id string) (*closure.ClosureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, closure.ErrRecordNotFound
	}
	return &record, nil
}

func (s *ClosureStore) ListRecords(_ context.Context, pointOfSaleID string, limit int) ([]closure.ClosureRecord, error) {
	s.mu.RLock()
	out := make([]closure.ClosureRecord, 0)
	for _, record := range s.records {
		if record.PointOfSaleID == pointOfSaleID {
			out = append(out, record)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.ProcessedAt.After(out[j].Metadata.ProcessedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
