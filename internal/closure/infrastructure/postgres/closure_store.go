package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	closure "fuel-backoffice/internal/closure/domain"
)

const (
	defaultClosuresTable = "shift_closures"
	defaultExportsTable  = "shift_closure_exports"
)

// ClosureStore commits closure change sets in one Postgres transaction.
type ClosureStore struct {
	db           *sql.DB
	closures     string
	exportsTable string
}

// Option configures ClosureStore.
type Option func(*ClosureStore)

// WithClosuresTable overrides the closure record table.
func WithClosuresTable(name string) Option {
	return func(s *ClosureStore) {
		if name != "" {
			s.closures = name
		}
	}
}

// NewClosureStore constructs a store.
func NewClosureStore(db *sql.DB, opts ...Option) *ClosureStore {
	s := &ClosureStore{db: db, closures: defaultClosuresTable, exportsTable: defaultExportsTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commit locks every guarded row, verifies it still holds the value the
// closure read, then applies all changes and inserts the record.
func (s *ClosureStore) Commit(ctx context.Context, changes closure.ChangeSet) (err error) {
	if s == nil || s.db == nil {
		return errors.New("closure store: nil db")
	}
	input, err := json.Marshal(changes.Record.Input)
	if err != nil {
		return fmt.Errorf("closure store: marshal input: %w", err)
	}
	output, err := json.Marshal(changes.Record.Output)
	if err != nil {
		return fmt.Errorf("closure store: marshal output: %w", err)
	}
	metadata, err := json.Marshal(changes.Record.Metadata)
	if err != nil {
		return fmt.Errorf("closure store: marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, change := range changes.Stock {
		if err = guard(ctx, tx, `SELECT stock FROM products WHERE UPPER(code) = UPPER($1) FOR UPDATE`,
			change.ProductCode, change.Expected, "product"); err != nil {
			return err
		}
	}
	for _, change := range changes.Tanks {
		if err = guard(ctx, tx, `SELECT level_liters FROM tanks WHERE id = $1 FOR UPDATE`,
			change.TankID, change.Expected, "tank"); err != nil {
			return err
		}
	}
	for _, change := range changes.Hoses {
		if err = guard(ctx, tx, `SELECT current_reading FROM hoses WHERE id = $1 FOR UPDATE`,
			change.HoseID, change.ExpectedCurrent, "hose"); err != nil {
			return err
		}
	}

	at := changes.Record.Metadata.ProcessedAt
	for _, change := range changes.Stock {
		if _, err = tx.ExecContext(ctx, `
UPDATE products SET stock = $1, updated_at = $2 WHERE UPPER(code) = UPPER($3)`,
			change.Stock, at, change.ProductCode); err != nil {
			return err
		}
	}
	for _, change := range changes.Tanks {
		if _, err = tx.ExecContext(ctx, `
UPDATE tanks SET level_liters = $1, updated_at = $2 WHERE id = $3`,
			change.Level, at, change.TankID); err != nil {
			return err
		}
	}
	for _, change := range changes.Hoses {
		if _, err = tx.ExecContext(ctx, `
UPDATE hoses SET previous_reading = $1, current_reading = $2, updated_at = $3 WHERE id = $4`,
			change.PreviousReading, change.CurrentReading, at, change.HoseID); err != nil {
			return err
		}
	}
	for _, entry := range changes.Histories {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO hose_reading_history (
	id, hose_id, closure_id, previous_reading, current_reading, sold, unit, recorded_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			entry.ID, entry.HoseID, entry.ClosureID, entry.PreviousReading, entry.CurrentReading,
			entry.Sold, entry.Unit, entry.RecordedAt); err != nil {
			return err
		}
	}

	record := changes.Record
	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	id, schema_version, point_of_sale_id, start_time, finish_time, status,
	input, output, metadata, processed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, s.closures),
		record.ID, record.SchemaVersion, record.PointOfSaleID, record.StartTime, record.FinishTime,
		string(record.Output.Status), input, output, metadata, at); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

func guard(ctx context.Context, tx *sql.Tx, query, id string, expected float64, kind string) error {
	var current float64
	if err := tx.QueryRowContext(ctx, query, id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %s removed", closure.ErrConcurrentModification, kind, id)
		}
		return err
	}
	if current != expected {
		return fmt.Errorf("%w: %s %s", closure.ErrConcurrentModification, kind, id)
	}
	return nil
}

// GetRecord fetches a closure record.
func (s *ClosureStore) GetRecord(ctx context.Context, id string) (*closure.ClosureRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("closure store: nil db")
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT id, schema_version, point_of_sale_id, start_time, finish_time, input, output, metadata
FROM %s
WHERE id = $1`, s.closures), id)
	record, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, closure.ErrRecordNotFound
	}
	return record, nil
}

// ListRecords lists the latest records of a point of sale.
func (s *ClosureStore) ListRecords(ctx context.Context, pointOfSaleID string, limit int) ([]closure.ClosureRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("closure store: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, schema_version, point_of_sale_id, start_time, finish_time, input, output, metadata
FROM %s
WHERE point_of_sale_id = $1
ORDER BY processed_at DESC
LIMIT $2`, s.closures), pointOfSaleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []closure.ClosureRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if record != nil {
			out = append(out, *record)
		}
	}
	return out, rows.Err()
}

// RecordExport stores where a rendered report was archived.
func (s *ClosureStore) RecordExport(ctx context.Context, closureID, format, location string) error {
	if s == nil || s.db == nil {
		return errors.New("closure store: nil db")
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, closure_id, format, location, created_at)
VALUES ($1,$2,$3,$4,$5)`, s.exportsTable),
		uuid.NewString(), closureID, format, location, time.Now().UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*closure.ClosureRecord, error) {
	var record closure.ClosureRecord
	var input, output, metadata []byte
	if err := row.Scan(
		&record.ID,
		&record.SchemaVersion,
		&record.PointOfSaleID,
		&record.StartTime,
		&record.FinishTime,
		&input,
		&output,
		&metadata,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(input, &record.Input); err != nil {
		return nil, fmt.Errorf("closure %s: decode input: %w", record.ID, err)
	}
	if err := json.Unmarshal(output, &record.Output); err != nil {
		return nil, fmt.Errorf("closure %s: decode output: %w", record.ID, err)
	}
	if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
		return nil, fmt.Errorf("closure %s: decode metadata: %w", record.ID, err)
	}
	record.StartTime = record.StartTime.UTC()
	record.FinishTime = record.FinishTime.UTC()
	return &record, nil
}
