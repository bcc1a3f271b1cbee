package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	closure "fuel-backoffice/internal/closure/domain"
	masterdata "fuel-backoffice/internal/masterdata/domain"
)

const defaultLookupConcurrency = 8

// ShiftClosureService runs shift closures: it validates the declared
// readings, applies them to inventory and commits everything at once.
type ShiftClosureService struct {
	pointsOfSale masterdata.PointOfSaleRepository
	products     masterdata.ProductRepository
	tanks        masterdata.TankRepository
	dispensers   masterdata.DispenserRepository
	volumes      VolumeLookup
	store        closure.Store

	reader             DispenserReadingProcessor
	reconciler         PaymentReconciler
	lineTolerance      decimal.Decimal
	lineErrorThreshold decimal.Decimal
	lookupConcurrency  int

	locker   *PointOfSaleLocker
	observer Observer
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger
}

// Option configures ShiftClosureService.
type Option func(*ShiftClosureService)

// WithObserver attaches progress observers.
func WithObserver(observers ...Observer) Option {
	return func(s *ShiftClosureService) {
		if len(observers) == 1 && observers[0] != nil {
			s.observer = observers[0]
			return
		}
		if len(observers) > 0 {
			s.observer = Observers(observers)
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *ShiftClosureService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *ShiftClosureService) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithPaymentTolerance sets the accepted declared-vs-methods difference.
func WithPaymentTolerance(tolerance decimal.Decimal) Option {
	return func(s *ShiftClosureService) {
		s.reconciler = NewPaymentReconciler(tolerance)
	}
}

// WithLineTotalTolerance sets the difference above which a declared line
// total raises a warning.
func WithLineTotalTolerance(tolerance decimal.Decimal) Option {
	return func(s *ShiftClosureService) {
		if tolerance.IsPositive() {
			s.lineTolerance = tolerance
		}
	}
}

// WithLineTotalErrorThreshold turns line total differences above threshold
// into item errors. Zero disables it.
func WithLineTotalErrorThreshold(threshold decimal.Decimal) Option {
	return func(s *ShiftClosureService) {
		if !threshold.IsNegative() {
			s.lineErrorThreshold = threshold
		}
	}
}

// WithLocker shares a locker between services.
func WithLocker(locker *PointOfSaleLocker) Option {
	return func(s *ShiftClosureService) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithLookupConcurrency bounds the concurrent dispenser lookups of pre-validation.
func WithLookupConcurrency(n int) Option {
	return func(s *ShiftClosureService) {
		if n > 0 {
			s.lookupConcurrency = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *ShiftClosureService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewShiftClosureService constructs the orchestrator.
func NewShiftClosureService(
	pointsOfSale masterdata.PointOfSaleRepository,
	products masterdata.ProductRepository,
	tanks masterdata.TankRepository,
	dispensers masterdata.DispenserRepository,
	volumes VolumeLookup,
	store closure.Store,
	opts ...Option,
) (*ShiftClosureService, error) {
	if pointsOfSale == nil {
		return nil, errors.New("shift closure service: nil point of sale repository")
	}
	if products == nil {
		return nil, errors.New("shift closure service: nil product repository")
	}
	if tanks == nil {
		return nil, errors.New("shift closure service: nil tank repository")
	}
	if dispensers == nil {
		return nil, errors.New("shift closure service: nil dispenser repository")
	}
	if volumes == nil {
		return nil, errors.New("shift closure service: nil volume lookup")
	}
	if store == nil {
		return nil, errors.New("shift closure service: nil closure store")
	}
	s := &ShiftClosureService{
		pointsOfSale:      pointsOfSale,
		products:          products,
		tanks:             tanks,
		dispensers:        dispensers,
		volumes:           volumes,
		store:             store,
		reconciler:        NewPaymentReconciler(DefaultPaymentTolerance),
		lineTolerance:     DefaultPaymentTolerance,
		lookupConcurrency: defaultLookupConcurrency,
		locker:            NewPointOfSaleLocker(),
		observer:          NopObserver{},
		clock:             systemClock{},
		ids:               uuidGenerator{},
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Process runs one closure. A malformed request returns an error wrapping
// closure.ErrInvalidRequest and touches nothing; every other outcome,
// including failures, is reported through the result.
func (s *ShiftClosureService) Process(ctx context.Context, req closure.ShiftClosureRequest) (closure.Result, error) {
	if err := req.Validate(); err != nil {
		return closure.Result{}, err
	}

	unlock, err := s.locker.Lock(ctx, req.PointOfSaleID)
	if err != nil {
		return closure.Result{}, fmt.Errorf("shift closure: wait for point of sale %s: %w", req.PointOfSaleID, err)
	}
	defer unlock()

	started := time.Now()
	closureID := s.ids.NewID()
	ws := newWorkingSet(closureID, req.PointOfSaleID, s.clock.Now())

	var results []stageResult
	run := func(stage func() stageResult) stageResult {
		stageStart := time.Now()
		res := stage()
		res.duration = time.Since(stageStart)
		results = append(results, res)
		s.stageCompleted(ctx, ws, res)
		return res
	}

	if pre := run(func() stageResult { return s.prevalidate(ctx, ws, req) }); pre.aborted {
		return s.finish(ctx, ws, results, started), nil
	}
	run(func() stageResult { return s.processDispensers(ctx, ws, req) })
	run(func() stageResult { return s.processTanks(ctx, ws, req) })
	run(func() stageResult { return s.processProductSales(ctx, ws, req) })
	run(func() stageResult { return s.checkStatistics(ws, req, fold(results).Totals) })
	run(func() stageResult { return s.reconcilePayments(ws, req, fold(results).Totals.Value) })
	run(func() stageResult { return s.persist(ctx, ws, req, results, started) })

	return s.finish(ctx, ws, results, started), nil
}

// Get returns a committed closure as a result.
func (s *ShiftClosureService) Get(ctx context.Context, id string) (*closure.ClosureRecord, error) {
	if id == "" {
		return nil, closure.ErrRecordNotFound
	}
	return s.store.GetRecord(ctx, id)
}

// List returns the latest closures of a point of sale.
func (s *ShiftClosureService) List(ctx context.Context, pointOfSaleID string, limit int) ([]closure.ClosureRecord, error) {
	if pointOfSaleID == "" {
		return nil, errors.New("shift closure: empty point of sale id")
	}
	return s.store.ListRecords(ctx, pointOfSaleID, limit)
}

func (s *ShiftClosureService) finish(ctx context.Context, ws *workingSet, results []stageResult, started time.Time) closure.Result {
	result := fold(results)
	result.ClosureID = ws.closureID
	result.PointOfSaleID = ws.pointOfSaleID
	result.Status = deriveStatus(results)
	s.observer.ClosureCompleted(ctx, ClosureEvent{
		ClosureID:     ws.closureID,
		PointOfSaleID: ws.pointOfSaleID,
		Status:        result.Status,
		Errors:        len(result.Errors),
		Warnings:      len(result.Warnings),
		Duration:      time.Since(started),
	})
	return result
}

func (s *ShiftClosureService) stageCompleted(ctx context.Context, ws *workingSet, res stageResult) {
	errs, warnings := res.counts()
	s.observer.StageCompleted(ctx, StageEvent{
		ClosureID:     ws.closureID,
		PointOfSaleID: ws.pointOfSaleID,
		Stage:         res.stage,
		Errors:        errs,
		Warnings:      warnings,
		Aborted:       res.aborted,
		Duration:      res.duration,
	})
}

func (s *ShiftClosureService) itemProcessed(ctx context.Context, ws *workingSet, stage closure.Stage, item, outcome, message string) {
	s.observer.ItemProcessed(ctx, ItemEvent{
		ClosureID:     ws.closureID,
		PointOfSaleID: ws.pointOfSaleID,
		Stage:         stage,
		Item:          item,
		Outcome:       outcome,
		Message:       message,
	})
}
