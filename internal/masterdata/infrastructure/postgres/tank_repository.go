package postgres

import (
	"context"
	"database/sql"
	"errors"

	masterdata "fuel-backoffice/internal/masterdata/domain"
	"fuel-backoffice/internal/units"
)

const tankColumns = `id, point_of_sale_id, name, product_code, tank_type, volume_unit,
	capacity_liters, level_liters, minimum_liters, diameter_cm, max_height_cm, updated_at`

// TankRepository is a Postgres implementation for tanks.
type TankRepository struct {
	db DBTX
}

// NewTankRepository constructs a repository.
func NewTankRepository(db DBTX) *TankRepository {
	return &TankRepository{db: db}
}

// GetTank loads a tank by id.
func (r *TankRepository) GetTank(ctx context.Context, id string) (*masterdata.Tank, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tank repo: nil db")
	}
	if id == "" {
		return nil, errors.New("tank repo: empty id")
	}
	return scanTank(r.db.QueryRowContext(ctx, `SELECT `+tankColumns+` FROM tanks WHERE id = $1`, id))
}

// FindTankByProduct returns the first tank, by id, holding the product at the point of sale.
func (r *TankRepository) FindTankByProduct(ctx context.Context, pointOfSaleID, productCode string) (*masterdata.Tank, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tank repo: nil db")
	}
	return scanTank(r.db.QueryRowContext(ctx, `
SELECT `+tankColumns+`
FROM tanks
WHERE point_of_sale_id = $1 AND UPPER(product_code) = UPPER($2)
ORDER BY id
LIMIT 1`, pointOfSaleID, productCode))
}

// SaveTank upserts a tank.
func (r *TankRepository) SaveTank(ctx context.Context, tank *masterdata.Tank) error {
	if r == nil || r.db == nil {
		return errors.New("tank repo: nil db")
	}
	if tank == nil {
		return errors.New("tank repo: nil tank")
	}
	if err := tank.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tanks (
	id, point_of_sale_id, name, product_code, tank_type, volume_unit,
	capacity_liters, level_liters, minimum_liters, diameter_cm, max_height_cm
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
ON CONFLICT (id)
DO UPDATE SET
	point_of_sale_id = EXCLUDED.point_of_sale_id,
	name = EXCLUDED.name,
	product_code = EXCLUDED.product_code,
	tank_type = EXCLUDED.tank_type,
	volume_unit = EXCLUDED.volume_unit,
	capacity_liters = EXCLUDED.capacity_liters,
	level_liters = EXCLUDED.level_liters,
	minimum_liters = EXCLUDED.minimum_liters,
	diameter_cm = EXCLUDED.diameter_cm,
	max_height_cm = EXCLUDED.max_height_cm,
	updated_at = NOW()`,
		tank.ID, tank.PointOfSaleID, tank.Name, tank.ProductCode, tank.TankType, string(tank.VolumeUnit),
		tank.CapacityLiters, tank.LevelLiters, tank.MinimumLiters, tank.DiameterCM, tank.MaxHeightCM)
	return err
}

func scanTank(row *sql.Row) (*masterdata.Tank, error) {
	var (
		tank masterdata.Tank
		unit string
	)
	if err := row.Scan(
		&tank.ID,
		&tank.PointOfSaleID,
		&tank.Name,
		&tank.ProductCode,
		&tank.TankType,
		&unit,
		&tank.CapacityLiters,
		&tank.LevelLiters,
		&tank.MinimumLiters,
		&tank.DiameterCM,
		&tank.MaxHeightCM,
		&tank.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	tank.VolumeUnit = units.Unit(unit)
	tank.UpdatedAt = tank.UpdatedAt.UTC()
	return &tank, nil
}
