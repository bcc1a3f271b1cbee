package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gauging "fuel-backoffice/internal/gauging/domain"
	calibrationmemory "fuel-backoffice/internal/gauging/infrastructure/memory"
	masterdata "fuel-backoffice/internal/masterdata/domain"
	masterdatamemory "fuel-backoffice/internal/masterdata/infrastructure/memory"
	"fuel-backoffice/internal/units"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*GaugingService, *masterdatamemory.Store) {
	t.Helper()
	store := masterdatamemory.NewStore()
	ctx := context.Background()
	if err := store.SaveTank(ctx, &masterdata.Tank{
		ID:             "tank-1",
		PointOfSaleID:  "pos-1",
		ProductCode:    "DIESEL",
		VolumeUnit:     units.USGallon,
		CapacityLiters: 9000,
		LevelLiters:    4000,
		DiameterCM:     200,
		MaxHeightCM:    300,
	}); err != nil {
		t.Fatalf("save tank: %v", err)
	}
	service, err := NewGaugingService(
		calibrationmemory.NewCalibrationRepository(),
		store,
		WithClock(fixedClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, store
}

func TestGenerateTableThenLookup(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	table, err := service.GenerateTable(ctx, "tank-1", 200, 300, 1)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	last := table.Entries[len(table.Entries)-1]
	if last.HeightCM != 300 || last.VolumeLiters != 9424.78 {
		t.Fatalf("unexpected last entry %+v", last)
	}

	volume, err := service.LookupVolume(ctx, "tank-1", 150)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	want, _ := gauging.ComputeVolume(200, 150)
	if volume != want {
		t.Fatalf("expected %v, got %v", want, volume)
	}

	volume, err = service.LookupVolume(ctx, "tank-1", 150.5)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	upper, _ := gauging.ComputeVolume(200, 151)
	if volume <= want || volume >= upper {
		t.Fatalf("expected interpolated volume between %v and %v, got %v", want, upper, volume)
	}
}

func TestGenerateTableIsIdempotent(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.GenerateTableForTank(ctx, "tank-1", 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := service.GenerateTableForTank(ctx, "tank-1", 5)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(first.Entries) != len(second.Entries) {
		t.Fatalf("entry count changed: %d vs %d", len(first.Entries), len(second.Entries))
	}
	for i := range first.Entries {
		if first.Entries[i] != second.Entries[i] {
			t.Fatalf("entry %d changed", i)
		}
	}
	stored, err := service.Table(ctx, "tank-1")
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	if len(stored.Entries) != len(first.Entries) {
		t.Fatalf("stored table was not replaced")
	}
}

func TestLookupWithoutTable(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.LookupVolume(context.Background(), "tank-1", 10)
	if !errors.Is(err, gauging.ErrNoCalibrationData) {
		t.Fatalf("expected ErrNoCalibrationData, got %v", err)
	}
}

func TestLookupNegativeHeightOnGeneratedTable(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	if _, err := service.GenerateTable(ctx, "tank-1", 200, 300, 1); err != nil {
		t.Fatalf("generate: %v", err)
	}
	var geometry *gauging.InvalidGeometryError
	if _, err := service.LookupVolume(ctx, "tank-1", -50); !errors.As(err, &geometry) {
		t.Fatalf("expected InvalidGeometryError, got %v", err)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	report, err := service.ImportTable(ctx, "tank-1", strings.NewReader("height,volume\n20,400\n0,0\n10,190.5\nbad,row\n"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(report.Entries) != 3 || report.Skipped != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	exported, err := service.ExportTable(ctx, "tank-1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if string(exported) != "height,volume\n0,0\n10,190.5\n20,400\n" {
		t.Fatalf("unexpected export %q", exported)
	}

	if _, err := service.ImportTable(ctx, "tank-1", strings.NewReader("height,volume\n1,1\n1,2\n")); err == nil {
		t.Fatalf("expected duplicate height error")
	}
}

func TestApplyHeightReadingClamps(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()
	if _, err := service.GenerateTable(ctx, "tank-1", 200, 300, 10); err != nil {
		t.Fatalf("generate: %v", err)
	}

	reading, err := service.ApplyHeightReading(ctx, "tank-1", 300)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if reading.LevelLiters != 9000 || len(reading.Warnings) != 1 {
		t.Fatalf("expected clamp to capacity with warning, got %+v", reading)
	}
	if reading.FillPercent != 100 {
		t.Fatalf("expected full tank, got %v", reading.FillPercent)
	}
	tank, _ := store.GetTank(ctx, "tank-1")
	if tank.LevelLiters != 9000 {
		t.Fatalf("expected stored level 9000, got %v", tank.LevelLiters)
	}

	reading, err = service.ApplyHeightReading(ctx, "tank-1", 100)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(reading.Warnings) != 0 || reading.Unit != "us_gallon" {
		t.Fatalf("unexpected reading %+v", reading)
	}
}

func TestValidateTableReportsMissingData(t *testing.T) {
	service, _ := newTestService(t)
	result, err := service.ValidateTable(context.Background(), "tank-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid() {
		t.Fatalf("expected validation errors for missing table")
	}
	if _, err := service.ValidateTable(context.Background(), "missing"); !errors.Is(err, gauging.ErrTankNotFound) {
		t.Fatalf("expected ErrTankNotFound, got %v", err)
	}
}
