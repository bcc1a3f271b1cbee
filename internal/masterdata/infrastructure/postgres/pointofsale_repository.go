package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "fuel-backoffice/internal/masterdata/domain"
)

const defaultPointsOfSaleTable = "points_of_sale"

// PointOfSaleRepository is a Postgres implementation for points of sale.
type PointOfSaleRepository struct {
	db    DBTX
	table string
}

// NewPointOfSaleRepository constructs a repository.
func NewPointOfSaleRepository(db DBTX, opts ...PointOfSaleOption) *PointOfSaleRepository {
	repo := &PointOfSaleRepository{db: db, table: defaultPointsOfSaleTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// PointOfSaleOption configures the repository.
type PointOfSaleOption func(*PointOfSaleRepository)

// WithPointOfSaleTable overrides the default table name.
func WithPointOfSaleTable(table string) PointOfSaleOption {
	return func(repo *PointOfSaleRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// GetPointOfSale loads a point of sale by id.
func (r *PointOfSaleRepository) GetPointOfSale(ctx context.Context, id string) (*masterdata.PointOfSale, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("point of sale repo: nil db")
	}
	if id == "" {
		return nil, errors.New("point of sale repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, name, timezone, currency, active, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var pos masterdata.PointOfSale
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pos.ID,
		&pos.TenantID,
		&pos.Name,
		&pos.Timezone,
		&pos.Currency,
		&pos.Active,
		&pos.CreatedAt,
		&pos.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	pos.CreatedAt = pos.CreatedAt.UTC()
	pos.UpdatedAt = pos.UpdatedAt.UTC()
	return &pos, nil
}

// SavePointOfSale upserts a point of sale.
func (r *PointOfSaleRepository) SavePointOfSale(ctx context.Context, pos *masterdata.PointOfSale) error {
	if r == nil || r.db == nil {
		return errors.New("point of sale repo: nil db")
	}
	if pos == nil {
		return errors.New("point of sale repo: nil point of sale")
	}
	if err := pos.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	tenant_id,
	name,
	timezone,
	currency,
	active
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (id)
DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id,
	name = EXCLUDED.name,
	timezone = EXCLUDED.timezone,
	currency = EXCLUDED.currency,
	active = EXCLUDED.active,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		pos.ID,
		pos.TenantID,
		pos.Name,
		pos.Timezone,
		pos.Currency,
		pos.Active,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if pos.CreatedAt.IsZero() {
		pos.CreatedAt = now
	}
	pos.UpdatedAt = now
	return nil
}
