package postgres

import (
	"context"
	"database/sql"
	"errors"

	masterdata "fuel-backoffice/internal/masterdata/domain"
)

// DispenserRepository is a Postgres implementation for dispensers and hoses.
type DispenserRepository struct {
	db *sql.DB
}

// NewDispenserRepository constructs a repository.
func NewDispenserRepository(db *sql.DB) *DispenserRepository {
	return &DispenserRepository{db: db}
}

// GetDispenser loads a dispenser and its hoses.
func (r *DispenserRepository) GetDispenser(ctx context.Context, pointOfSaleID string, number int) (*masterdata.Dispenser, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("dispenser repo: nil db")
	}
	var dispenser masterdata.Dispenser
	if err := r.db.QueryRowContext(ctx, `
SELECT id, point_of_sale_id, number
FROM dispensers
WHERE point_of_sale_id = $1 AND number = $2`, pointOfSaleID, number).Scan(
		&dispenser.ID,
		&dispenser.PointOfSaleID,
		&dispenser.Number,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, dispenser_id, number, product_code, previous_reading, current_reading, updated_at
FROM hoses
WHERE dispenser_id = $1
ORDER BY number`, dispenser.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var hose masterdata.Hose
		if err := rows.Scan(
			&hose.ID,
			&hose.DispenserID,
			&hose.Number,
			&hose.ProductCode,
			&hose.PreviousReading,
			&hose.CurrentReading,
			&hose.UpdatedAt,
		); err != nil {
			return nil, err
		}
		hose.UpdatedAt = hose.UpdatedAt.UTC()
		dispenser.Hoses = append(dispenser.Hoses, hose)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &dispenser, nil
}

// SaveDispenser upserts the dispenser and its hoses in one transaction.
func (r *DispenserRepository) SaveDispenser(ctx context.Context, dispenser *masterdata.Dispenser) error {
	if r == nil || r.db == nil {
		return errors.New("dispenser repo: nil db")
	}
	if dispenser == nil {
		return errors.New("dispenser repo: nil dispenser")
	}
	if err := dispenser.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
INSERT INTO dispensers (id, point_of_sale_id, number)
VALUES ($1, $2, $3)
ON CONFLICT (id)
DO UPDATE SET point_of_sale_id = EXCLUDED.point_of_sale_id, number = EXCLUDED.number`,
		dispenser.ID, dispenser.PointOfSaleID, dispenser.Number); err != nil {
		return err
	}
	for _, hose := range dispenser.Hoses {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO hoses (id, dispenser_id, number, product_code, previous_reading, current_reading)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id)
DO UPDATE SET
	dispenser_id = EXCLUDED.dispenser_id,
	number = EXCLUDED.number,
	product_code = EXCLUDED.product_code,
	previous_reading = EXCLUDED.previous_reading,
	current_reading = EXCLUDED.current_reading,
	updated_at = NOW()`,
			hose.ID, dispenser.ID, hose.Number, hose.ProductCode, hose.PreviousReading, hose.CurrentReading); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// ListReadingHistory returns the newest entries first.
func (r *DispenserRepository) ListReadingHistory(ctx context.Context, hoseID string, limit int) ([]masterdata.ReadingHistory, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("dispenser repo: nil db")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, hose_id, closure_id, previous_reading, current_reading, sold, unit, recorded_at
FROM hose_reading_history
WHERE hose_id = $1
ORDER BY recorded_at DESC
LIMIT $2`, hoseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []masterdata.ReadingHistory
	for rows.Next() {
		var entry masterdata.ReadingHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.HoseID,
			&entry.ClosureID,
			&entry.PreviousReading,
			&entry.CurrentReading,
			&entry.Sold,
			&entry.Unit,
			&entry.RecordedAt,
		); err != nil {
			return nil, err
		}
		entry.RecordedAt = entry.RecordedAt.UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}
