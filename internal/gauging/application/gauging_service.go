package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	gauging "fuel-backoffice/internal/gauging/domain"
	masterdata "fuel-backoffice/internal/masterdata/domain"
	"fuel-backoffice/internal/observability/metrics"
	"fuel-backoffice/internal/units"
)

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// GaugingService turns fluid heights into volumes through per-tank
// calibration tables.
type GaugingService struct {
	tables gauging.Repository
	tanks  masterdata.TankRepository
	clock  Clock
	logger *zap.Logger
}

// Option configures the service.
type Option func(*GaugingService)

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(s *GaugingService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *GaugingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGaugingService constructs the service.
func NewGaugingService(tables gauging.Repository, tanks masterdata.TankRepository, opts ...Option) (*GaugingService, error) {
	if tables == nil {
		return nil, errors.New("gauging service: nil calibration repository")
	}
	if tanks == nil {
		return nil, errors.New("gauging service: nil tank repository")
	}
	s := &GaugingService{tables: tables, tanks: tanks, clock: systemClock{}, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ComputeVolume exposes the cylinder formula.
func (s *GaugingService) ComputeVolume(diameterCM, heightCM float64) (float64, error) {
	return gauging.ComputeVolume(diameterCM, heightCM)
}

// GenerateTable replaces the tank's table with one sampled from a cylinder.
// A zero increment means 1 cm. Regenerating with the same inputs yields the
// same table.
func (s *GaugingService) GenerateTable(ctx context.Context, tankID string, diameterCM, maxHeightCM, incrementCM float64) (gauging.Table, error) {
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveCalibrationGenerate(result) }()

	if tankID == "" {
		result = metrics.ResultError
		return gauging.Table{}, gauging.ErrEmptyTankID
	}
	entries, err := gauging.GenerateEntries(diameterCM, maxHeightCM, incrementCM)
	if err != nil {
		result = metrics.ResultError
		return gauging.Table{}, err
	}
	table, err := s.replace(ctx, tankID, entries, gauging.ProvenanceGenerated)
	if err != nil {
		result = metrics.ResultError
		return gauging.Table{}, err
	}
	s.logger.Info("calibration generated",
		zap.String("tank_id", tankID),
		zap.Float64("diameter_cm", diameterCM),
		zap.Float64("max_height_cm", maxHeightCM),
		zap.Int("entries", len(table.Entries)),
	)
	return table, nil
}

// GenerateTableForTank generates from the geometry stored on the tank.
func (s *GaugingService) GenerateTableForTank(ctx context.Context, tankID string, incrementCM float64) (gauging.Table, error) {
	tank, err := s.loadTank(ctx, tankID)
	if err != nil {
		return gauging.Table{}, err
	}
	if !tank.HasGeometry() {
		return gauging.Table{}, fmt.Errorf("%w: %s", gauging.ErrMissingGeometry, tankID)
	}
	return s.GenerateTable(ctx, tankID, tank.DiameterCM, tank.MaxHeightCM, incrementCM)
}

// LookupVolume returns the liters at the given height. The value is not rounded.
func (s *GaugingService) LookupVolume(ctx context.Context, tankID string, heightCM float64) (float64, error) {
	if tankID == "" {
		return 0, gauging.ErrEmptyTankID
	}
	table, err := s.tables.LoadTable(ctx, tankID)
	if err != nil {
		metrics.ObserveGaugingLookup(metrics.ResultError)
		return 0, err
	}
	if table == nil {
		metrics.ObserveGaugingLookup(metrics.ResultError)
		return 0, fmt.Errorf("%w: tank %s", gauging.ErrNoCalibrationData, tankID)
	}
	volume, err := table.Lookup(heightCM)
	if err != nil {
		metrics.ObserveGaugingLookup(metrics.ResultError)
		return 0, err
	}
	metrics.ObserveGaugingLookup(metrics.ResultSuccess)
	return volume, nil
}

// ImportTable parses CSV and replaces the tank's table with the valid rows.
func (s *GaugingService) ImportTable(ctx context.Context, tankID string, r io.Reader) (gauging.ImportReport, error) {
	report, err := gauging.DecodeCSV(r)
	if err != nil {
		return report, err
	}
	return s.ImportEntries(ctx, tankID, report)
}

// ImportEntries replaces the tank's table with already parsed entries.
func (s *GaugingService) ImportEntries(ctx context.Context, tankID string, report gauging.ImportReport) (gauging.ImportReport, error) {
	if tankID == "" {
		return report, gauging.ErrEmptyTankID
	}
	if len(report.Entries) == 0 {
		return report, fmt.Errorf("%w: no valid rows", gauging.ErrMalformedCalibrationCSV)
	}
	table, err := s.replace(ctx, tankID, report.Entries, gauging.ProvenanceImported)
	if err != nil {
		return report, err
	}
	report.Entries = table.Entries
	s.logger.Info("calibration imported",
		zap.String("tank_id", tankID),
		zap.Int("entries", len(table.Entries)),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

// ExportTable writes the tank's table as CSV.
func (s *GaugingService) ExportTable(ctx context.Context, tankID string) ([]byte, error) {
	table, err := s.Table(ctx, tankID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gauging.EncodeCSV(&buf, table.Entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Table loads the stored table or fails with ErrNoCalibrationData.
func (s *GaugingService) Table(ctx context.Context, tankID string) (gauging.Table, error) {
	if tankID == "" {
		return gauging.Table{}, gauging.ErrEmptyTankID
	}
	table, err := s.tables.LoadTable(ctx, tankID)
	if err != nil {
		return gauging.Table{}, err
	}
	if table == nil {
		return gauging.Table{}, fmt.Errorf("%w: tank %s", gauging.ErrNoCalibrationData, tankID)
	}
	return *table, nil
}

// ValidateTable checks the stored table against the tank's figures.
func (s *GaugingService) ValidateTable(ctx context.Context, tankID string) (gauging.Validation, error) {
	tank, err := s.loadTank(ctx, tankID)
	if err != nil {
		return gauging.Validation{}, err
	}
	table, err := s.tables.LoadTable(ctx, tankID)
	if err != nil {
		return gauging.Validation{}, err
	}
	var entries []gauging.Entry
	if table != nil {
		entries = table.Entries
	}
	return gauging.Validate(entries, gauging.Limits{CapacityLiters: tank.CapacityLiters, MaxHeightCM: tank.MaxHeightCM}), nil
}

// HeightReading is the outcome of applying a measured height to a tank.
type HeightReading struct {
	TankID         string   `json:"tank_id"`
	HeightCM       float64  `json:"height_cm"`
	VolumeLiters   float64  `json:"volume_liters"`
	LevelLiters    float64  `json:"level_liters"`
	LevelInUnit    float64  `json:"level_in_unit"`
	Unit           string   `json:"unit"`
	CapacityLiters float64  `json:"capacity_liters"`
	FillPercent    float64  `json:"fill_percent"`
	Warnings       []string `json:"warnings,omitempty"`
}

// ApplyHeightReading converts the height to a volume and stores it as the
// tank level, clamped to [0, capacity].
func (s *GaugingService) ApplyHeightReading(ctx context.Context, tankID string, heightCM float64) (HeightReading, error) {
	if heightCM < 0 {
		return HeightReading{}, &gauging.InvalidGeometryError{Field: "height", Value: heightCM}
	}
	tank, err := s.loadTank(ctx, tankID)
	if err != nil {
		return HeightReading{}, err
	}
	volume, err := s.LookupVolume(ctx, tankID, heightCM)
	if err != nil {
		return HeightReading{}, err
	}
	reading := HeightReading{TankID: tankID, HeightCM: heightCM, VolumeLiters: volume, CapacityLiters: tank.CapacityLiters}
	level, clamped := tank.ClampLevel(volume)
	if clamped {
		reading.Warnings = append(reading.Warnings, fmt.Sprintf("tank %s: volume %.2f L clamped to %.2f L", tankID, volume, level))
	}
	tank.LevelLiters = level
	tank.UpdatedAt = s.clock.Now()
	if err := s.tanks.SaveTank(ctx, tank); err != nil {
		return HeightReading{}, err
	}
	reading.LevelLiters = units.Round2(level)
	reading.FillPercent = tank.FillPercent()
	unit := tank.VolumeUnit
	if unit == "" {
		unit = units.Liter
	}
	inUnit, err := tank.LevelIn()
	if err != nil {
		return HeightReading{}, err
	}
	reading.Unit = string(unit)
	reading.LevelInUnit = units.Round2(inUnit)
	return reading, nil
}

func (s *GaugingService) replace(ctx context.Context, tankID string, entries []gauging.Entry, provenance gauging.Provenance) (gauging.Table, error) {
	table, err := gauging.NewTable(tankID, entries, provenance, s.clock.Now())
	if err != nil {
		return gauging.Table{}, err
	}
	if err := s.tables.ReplaceTable(ctx, table); err != nil {
		return gauging.Table{}, err
	}
	return table, nil
}

func (s *GaugingService) loadTank(ctx context.Context, tankID string) (*masterdata.Tank, error) {
	if tankID == "" {
		return nil, gauging.ErrEmptyTankID
	}
	tank, err := s.tanks.GetTank(ctx, tankID)
	if err != nil {
		return nil, err
	}
	if tank == nil {
		return nil, fmt.Errorf("%w: %s", gauging.ErrTankNotFound, tankID)
	}
	return tank, nil
}
