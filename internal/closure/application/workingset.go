package application

import (
	"context"
	"strings"
	"time"

	closure "fuel-backoffice/internal/closure/domain"
	masterdata "fuel-backoffice/internal/masterdata/domain"
)

// workingSet caches the entities a closure reads and tracks the values they
// had when read, so the commit can be guarded against concurrent writers.
type workingSet struct {
	closureID     string
	pointOfSaleID string
	now           time.Time

	products     map[string]*trackedProduct
	productOrder []string
	tanks        map[string]*trackedTank
	tankOrder    []string
	tankByCode   map[string]string
	dispensers   map[int]*masterdata.Dispenser
	hoses        []closure.HoseReadingChange
	histories    []masterdata.ReadingHistory
}

type trackedProduct struct {
	product  *masterdata.Product
	original float64
	dirty    bool
}

type trackedTank struct {
	tank     *masterdata.Tank
	original float64
	dirty    bool
}

func newWorkingSet(closureID, pointOfSaleID string, now time.Time) *workingSet {
	return &workingSet{
		closureID:     closureID,
		pointOfSaleID: pointOfSaleID,
		now:           now,
		products:      make(map[string]*trackedProduct),
		tanks:         make(map[string]*trackedTank),
		tankByCode:    make(map[string]string),
		dispensers:    make(map[int]*masterdata.Dispenser),
	}
}

func codeKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// product returns the cached product, loading it on first use. A nil product
// with nil error means it does not exist.
func (w *workingSet) product(ctx context.Context, repo masterdata.ProductRepository, code string) (*masterdata.Product, error) {
	key := codeKey(code)
	if tracked, ok := w.products[key]; ok {
		return tracked.product, nil
	}
	product, err := repo.GetProduct(ctx, code)
	if err != nil {
		return nil, err
	}
	if product == nil {
		w.products[key] = &trackedProduct{}
		return nil, nil
	}
	product = product.Clone()
	w.products[key] = &trackedProduct{product: product, original: product.Stock}
	w.productOrder = append(w.productOrder, key)
	return product, nil
}

func (w *workingSet) tank(ctx context.Context, repo masterdata.TankRepository, id string) (*masterdata.Tank, error) {
	if tracked, ok := w.tanks[id]; ok {
		return tracked.tank, nil
	}
	tank, err := repo.GetTank(ctx, id)
	if err != nil {
		return nil, err
	}
	return w.track(id, tank), nil
}

func (w *workingSet) tankForProduct(ctx context.Context, repo masterdata.TankRepository, code string) (*masterdata.Tank, error) {
	key := codeKey(code)
	if id, ok := w.tankByCode[key]; ok {
		if id == "" {
			return nil, nil
		}
		return w.tanks[id].tank, nil
	}
	tank, err := repo.FindTankByProduct(ctx, w.pointOfSaleID, code)
	if err != nil {
		return nil, err
	}
	if tank == nil {
		w.tankByCode[key] = ""
		return nil, nil
	}
	if tracked, ok := w.tanks[tank.ID]; ok && tracked.tank != nil {
		w.tankByCode[key] = tank.ID
		return tracked.tank, nil
	}
	w.tankByCode[key] = tank.ID
	return w.track(tank.ID, tank), nil
}

func (w *workingSet) track(id string, tank *masterdata.Tank) *masterdata.Tank {
	if tank == nil {
		w.tanks[id] = &trackedTank{}
		return nil
	}
	tank = tank.Clone()
	w.tanks[id] = &trackedTank{tank: tank, original: tank.LevelLiters}
	w.tankOrder = append(w.tankOrder, id)
	return tank
}

func (w *workingSet) setStock(code string, stock float64) {
	tracked, ok := w.products[codeKey(code)]
	if !ok || tracked.product == nil {
		return
	}
	tracked.product.Stock = stock
	tracked.dirty = true
}

func (w *workingSet) setTankLevel(id string, level float64) {
	tracked, ok := w.tanks[id]
	if !ok || tracked.tank == nil {
		return
	}
	tracked.tank.LevelLiters = level
	tracked.tank.UpdatedAt = w.now
	tracked.dirty = true
}

func (w *workingSet) advanceHose(hose *masterdata.Hose, current float64, history masterdata.ReadingHistory) {
	w.hoses = append(w.hoses, closure.HoseReadingChange{
		HoseID:          hose.ID,
		ExpectedCurrent: hose.CurrentReading,
		PreviousReading: hose.CurrentReading,
		CurrentReading:  current,
	})
	hose.PreviousReading = hose.CurrentReading
	hose.CurrentReading = current
	hose.UpdatedAt = w.now
	w.histories = append(w.histories, history)
}

// changeSet lists the accumulated mutations in the order entities were first read.
func (w *workingSet) changeSet(record closure.ClosureRecord) closure.ChangeSet {
	changes := closure.ChangeSet{Record: record}
	for _, key := range w.productOrder {
		tracked := w.products[key]
		if !tracked.dirty {
			continue
		}
		changes.Stock = append(changes.Stock, closure.StockChange{
			ProductCode: tracked.product.Code,
			Expected:    tracked.original,
			Stock:       tracked.product.Stock,
		})
	}
	for _, id := range w.tankOrder {
		tracked := w.tanks[id]
		if !tracked.dirty {
			continue
		}
		changes.Tanks = append(changes.Tanks, closure.TankLevelChange{
			TankID:   id,
			Expected: tracked.original,
			Level:    tracked.tank.LevelLiters,
		})
	}
	changes.Hoses = append(changes.Hoses, w.hoses...)
	changes.Histories = append(changes.Histories, w.histories...)
	return changes
}
