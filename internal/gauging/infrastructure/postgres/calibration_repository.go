package postgres

import (
	"context"
	"database/sql"
	"errors"

	gauging "fuel-backoffice/internal/gauging/domain"
)

// CalibrationRepository stores calibration tables in Postgres.
type CalibrationRepository struct {
	db *sql.DB
}

// NewCalibrationRepository constructs a repository.
func NewCalibrationRepository(db *sql.DB) *CalibrationRepository {
	return &CalibrationRepository{db: db}
}

// LoadTable loads the table ordered by height.
func (r *CalibrationRepository) LoadTable(ctx context.Context, tankID string) (*gauging.Table, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("calibration repo: nil db")
	}
	if tankID == "" {
		return nil, gauging.ErrEmptyTankID
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT height_cm, volume_liters, provenance, updated_at
FROM tank_calibration
WHERE tank_id = $1
ORDER BY height_cm`, tankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := gauging.Table{TankID: tankID}
	for rows.Next() {
		var (
			entry      gauging.Entry
			provenance string
		)
		if err := rows.Scan(&entry.HeightCM, &entry.VolumeLiters, &provenance, &table.UpdatedAt); err != nil {
			return nil, err
		}
		table.Provenance = gauging.Provenance(provenance)
		table.Entries = append(table.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(table.Entries) == 0 {
		return nil, nil
	}
	table.UpdatedAt = table.UpdatedAt.UTC()
	return &table, nil
}

// ReplaceTable deletes the tank's rows and inserts the new table in one transaction.
func (r *CalibrationRepository) ReplaceTable(ctx context.Context, table gauging.Table) error {
	if r == nil || r.db == nil {
		return errors.New("calibration repo: nil db")
	}
	if table.TankID == "" {
		return gauging.ErrEmptyTankID
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

	if _, err = tx.ExecContext(ctx, `DELETE FROM tank_calibration WHERE tank_id = $1`, table.TankID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO tank_calibration (tank_id, height_cm, volume_liters, provenance, updated_at)
VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range table.Entries {
		if _, err = stmt.ExecContext(ctx, table.TankID, entry.HeightCM, entry.VolumeLiters, string(table.Provenance), table.UpdatedAt); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
