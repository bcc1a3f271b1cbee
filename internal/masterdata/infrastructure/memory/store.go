package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	masterdata "fuel-backoffice/internal/masterdata/domain"
)

// Store keeps masterdata in process. It satisfies every masterdata repository
// port and exposes Update for callers that need several writes under one lock.
type Store struct {
	mu           sync.RWMutex
	pointsOfSale map[string]masterdata.PointOfSale
	products     map[string]masterdata.Product
	tanks        map[string]masterdata.Tank
	dispensers   map[string]masterdata.Dispenser
	histories    map[string][]masterdata.ReadingHistory
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		pointsOfSale: make(map[string]masterdata.PointOfSale),
		products:     make(map[string]masterdata.Product),
		tanks:        make(map[string]masterdata.Tank),
		dispensers:   make(map[string]masterdata.Dispenser),
		histories:    make(map[string][]masterdata.ReadingHistory),
	}
}

func productKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func dispenserKey(pointOfSaleID string, number int) string {
	return fmt.Sprintf("%s#%d", pointOfSaleID, number)
}

// GetPointOfSale loads a point of sale by id.
func (s *Store) GetPointOfSale(_ context.Context, id string) (*masterdata.PointOfSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.pointsOfSale[id]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

// SavePointOfSale upserts a point of sale.
func (s *Store) SavePointOfSale(_ context.Context, pos *masterdata.PointOfSale) error {
	if pos == nil {
		return errors.New("memory masterdata: nil point of sale")
	}
	if err := pos.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointsOfSale[pos.ID] = *pos
	return nil
}

// GetProduct loads a product by code.
func (s *Store) GetProduct(_ context.Context, code string) (*masterdata.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[productKey(code)]
	if !ok {
		return nil, nil
	}
	return &product, nil
}

// SaveProduct upserts a product.
func (s *Store) SaveProduct(_ context.Context, product *masterdata.Product) error {
	if product == nil {
		return errors.New("memory masterdata: nil product")
	}
	if err := product.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[productKey(product.Code)] = *product
	return nil
}

// GetTank loads a tank by id.
func (s *Store) GetTank(_ context.Context, id string) (*masterdata.Tank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tank, ok := s.tanks[id]
	if !ok {
		return nil, nil
	}
	return &tank, nil
}

// FindTankByProduct returns the first tank, by id, holding the product at the point of sale.
func (s *Store) FindTankByProduct(_ context.Context, pointOfSaleID, productCode string) (*masterdata.Tank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *masterdata.Tank
	for _, tank := range s.tanks {
		if tank.PointOfSaleID != pointOfSaleID || !masterdata.SameCode(tank.ProductCode, productCode) {
			continue
		}
		if found == nil || tank.ID < found.ID {
			cp := tank
			found = &cp
		}
	}
	return found, nil
}

// SaveTank upserts a tank.
func (s *Store) SaveTank(_ context.Context, tank *masterdata.Tank) error {
	if tank == nil {
		return errors.New("memory masterdata: nil tank")
	}
	if err := tank.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tanks[tank.ID] = *tank
	return nil
}

// GetDispenser loads a dispenser by its number at the point of sale.
func (s *Store) GetDispenser(_ context.Context, pointOfSaleID string, number int) (*masterdata.Dispenser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dispenser, ok := s.dispensers[dispenserKey(pointOfSaleID, number)]
	if !ok {
		return nil, nil
	}
	return dispenser.Clone(), nil
}

// SaveDispenser upserts a dispenser with its hoses.
func (s *Store) SaveDispenser(_ context.Context, dispenser *masterdata.Dispenser) error {
	if dispenser == nil {
		return errors.New("memory masterdata: nil dispenser")
	}
	if err := dispenser.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispensers[dispenserKey(dispenser.PointOfSaleID, dispenser.Number)] = *dispenser.Clone()
	return nil
}

// ListReadingHistory returns the newest entries first.
func (s *Store) ListReadingHistory(_ context.Context, hoseID string, limit int) ([]masterdata.ReadingHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.histories[hoseID]
	out := make([]masterdata.ReadingHistory, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update runs fn with exclusive access to the store.
func (s *Store) Update(fn func(tx *Tx) error) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

// Tx gives mutable access to the store inside Update.
type Tx struct {
	s *Store
}

// Product returns the stored product.
func (tx *Tx) Product(code string) (masterdata.Product, bool) {
	product, ok := tx.s.products[productKey(code)]
	return product, ok
}

// PutProduct overwrites the stored product.
func (tx *Tx) PutProduct(product masterdata.Product) {
	tx.s.products[productKey(product.Code)] = product
}

// Tank returns the stored tank.
func (tx *Tx) Tank(id string) (masterdata.Tank, bool) {
	tank, ok := tx.s.tanks[id]
	return tank, ok
}

// PutTank overwrites the stored tank.
func (tx *Tx) PutTank(tank masterdata.Tank) {
	tx.s.tanks[tank.ID] = tank
}

// Hose finds a hose by id across dispensers.
func (tx *Tx) Hose(id string) (masterdata.Hose, bool) {
	for _, dispenser := range tx.s.dispensers {
		for _, hose := range dispenser.Hoses {
			if hose.ID == id {
				return hose, true
			}
		}
	}
	return masterdata.Hose{}, false
}

// PutHose overwrites the hose inside its dispenser.
func (tx *Tx) PutHose(hose masterdata.Hose) bool {
	for key, dispenser := range tx.s.dispensers {
		for i := range dispenser.Hoses {
			if dispenser.Hoses[i].ID == hose.ID {
				dispenser.Hoses[i] = hose
				tx.s.dispensers[key] = dispenser
				return true
			}
		}
	}
	return false
}

// AppendHistory appends a meter history entry.
func (tx *Tx) AppendHistory(entry masterdata.ReadingHistory) {
	tx.s.histories[entry.HoseID] = append(tx.s.histories[entry.HoseID], entry)
}
