package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	closureapp "fuel-backoffice/internal/closure/application"
	closure "fuel-backoffice/internal/closure/domain"
	closurepostgres "fuel-backoffice/internal/closure/infrastructure/postgres"
	gaugingapp "fuel-backoffice/internal/gauging/application"
	calibrationpostgres "fuel-backoffice/internal/gauging/infrastructure/postgres"
	masterdataapp "fuel-backoffice/internal/masterdata/application"
	masterdatapostgres "fuel-backoffice/internal/masterdata/infrastructure/postgres"
	"fuel-backoffice/internal/platform/database"
)

type site struct {
	db         *sql.DB
	suffix     string
	posID      string
	product    string
	tankID     string
	hoseID     string
	service    *closureapp.ShiftClosureService
	store      *closurepostgres.ClosureStore
	tanks      *masterdatapostgres.TankRepository
	products   *masterdatapostgres.ProductRepository
	dispensers *masterdatapostgres.DispenserRepository
}

func openSite(t *testing.T) *site {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	if err := database.Migrate(ctx, dsn, filepath.Join("..", "..", "..", "migrations"), nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	db, err := database.Open(ctx, dsn, database.PoolConfig{MaxOpenConns: 8})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	suffix := strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	s := &site{
		db:         db,
		suffix:     suffix,
		posID:      "pos-it-" + suffix,
		product:    "DIESEL-" + strings.ToUpper(suffix),
		tankID:     "tank-it-" + suffix,
		hoseID:     "hose-it-" + suffix,
		store:      closurepostgres.NewClosureStore(db),
		tanks:      masterdatapostgres.NewTankRepository(db),
		products:   masterdatapostgres.NewProductRepository(db),
		dispensers: masterdatapostgres.NewDispenserRepository(db),
	}
	pointsOfSale := masterdatapostgres.NewPointOfSaleRepository(db)

	catalog, err := masterdataapp.NewCatalogService(pointsOfSale, s.products, s.tanks, s.dispensers)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	if err := catalog.Seed(ctx, masterdataapp.Catalog{
		PointsOfSale: []masterdataapp.PointOfSaleSeed{{ID: s.posID, TenantID: "tenant-it", Name: "Integration"}},
		Products: []masterdataapp.ProductSeed{{
			Code: s.product, Name: "Diesel", Category: "fuel", IsFuel: true, Unit: "liter", UnitPrice: "1.25",
		}},
		Tanks: []masterdataapp.TankSeed{{
			ID: s.tankID, PointOfSaleID: s.posID, ProductCode: s.product,
			CapacityLiters: 10000, LevelLiters: 5000, DiameterCM: 200, MaxHeightCM: 300,
		}},
		Dispensers: []masterdataapp.DispenserSeed{{
			ID: "disp-it-" + suffix, PointOfSaleID: s.posID, Number: 1,
			Hoses: []masterdataapp.HoseSeed{{ID: s.hoseID, Number: 1, ProductCode: s.product, CurrentReading: 1000}},
		}},
	}); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	gauging, err := gaugingapp.NewGaugingService(calibrationpostgres.NewCalibrationRepository(db), s.tanks)
	if err != nil {
		t.Fatalf("gauging service: %v", err)
	}
	if _, err := gauging.GenerateTableForTank(ctx, s.tankID, 1); err != nil {
		t.Fatalf("generate calibration: %v", err)
	}

	s.service, err = closureapp.NewShiftClosureService(pointsOfSale, s.products, s.tanks, s.dispensers, gauging, s.store)
	if err != nil {
		t.Fatalf("closure service: %v", err)
	}
	return s
}

func (s *site) request(previous, current float64, declared string) closure.ShiftClosureRequest {
	start := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	return closure.ShiftClosureRequest{
		PointOfSaleID: s.posID,
		Operator:      "integration",
		StartTime:     start,
		FinishTime:    start.Add(8 * time.Hour),
		Dispensers: []closure.DispenserReading{{
			DispenserNumber: 1,
			Hoses: []closure.HoseReading{{
				HoseNumber: 1, ProductCode: s.product, PreviousReading: previous, CurrentReading: current,
			}},
		}},
		Payments: &closure.PaymentSummary{
			DeclaredTotal: decimal.RequireFromString(declared),
			Methods:       []closure.MethodAmount{{Method: "cash", Amount: decimal.RequireFromString(declared)}},
		},
	}
}

func TestShiftClosureCommitsAtomically(t *testing.T) {
	s := openSite(t)
	ctx := context.Background()

	result, err := s.service.Process(ctx, s.request(1000, 1100, "125"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Status != closure.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s: %v", result.Status, result.Errors)
	}

	tank, err := s.tanks.GetTank(ctx, s.tankID)
	if err != nil {
		t.Fatalf("get tank: %v", err)
	}
	if math.Abs(tank.LevelLiters-4900) > 1e-6 {
		t.Fatalf("expected tank level 4900, got %v", tank.LevelLiters)
	}
	dispenser, err := s.dispensers.GetDispenser(ctx, s.posID, 1)
	if err != nil {
		t.Fatalf("get dispenser: %v", err)
	}
	if hose, ok := dispenser.Hose(1); !ok || hose.CurrentReading != 1100 || hose.PreviousReading != 1000 {
		t.Fatalf("unexpected hose state %+v", hose)
	}
	history, err := s.dispensers.ListReadingHistory(ctx, s.hoseID, 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 || history[0].Sold != 100 {
		t.Fatalf("unexpected history %+v", history)
	}

	record, err := s.service.Get(ctx, result.ClosureID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.SchemaVersion != closure.SchemaVersion || record.Input.Request.Operator != "integration" {
		t.Fatalf("unexpected record %+v", record)
	}
	if err := s.store.RecordExport(ctx, result.ClosureID, "pdf", "file:///tmp/"+result.ClosureID+".pdf"); err != nil {
		t.Fatalf("record export: %v", err)
	}
	records, err := s.service.List(ctx, s.posID, 10)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected 1 listed record, got %d (%v)", len(records), err)
	}
}

func TestStaleMeterRejectsWholeChangeSet(t *testing.T) {
	s := openSite(t)
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx, "UPDATE hoses SET current_reading = 1050 WHERE id = $1", s.hoseID); err != nil {
		t.Fatalf("move meter: %v", err)
	}
	err := s.store.Commit(ctx, closure.ChangeSet{
		Tanks: []closure.TankLevelChange{{TankID: s.tankID, Expected: 5000, Level: 4900}},
		Hoses: []closure.HoseReadingChange{{HoseID: s.hoseID, ExpectedCurrent: 1000, PreviousReading: 1000, CurrentReading: 1100}},
		Record: closure.ClosureRecord{
			ID: "closure-it-" + s.suffix, SchemaVersion: closure.SchemaVersion, PointOfSaleID: s.posID,
			StartTime: time.Now().UTC(), FinishTime: time.Now().UTC(),
			Metadata: closure.ProcessingMetadata{ProcessedAt: time.Now().UTC()},
		},
	})
	if !errors.Is(err, closure.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	tank, err := s.tanks.GetTank(ctx, s.tankID)
	if err != nil {
		t.Fatalf("get tank: %v", err)
	}
	if tank.LevelLiters != 5000 {
		t.Fatalf("tank level changed despite rejected commit: %v", tank.LevelLiters)
	}
	if _, err := s.service.Get(ctx, "closure-it-"+s.suffix); !errors.Is(err, closure.ErrRecordNotFound) {
		t.Fatalf("expected no record, got %v", err)
	}
}
