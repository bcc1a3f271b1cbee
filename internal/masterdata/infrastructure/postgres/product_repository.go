package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	masterdata "fuel-backoffice/internal/masterdata/domain"
)

// ProductRepository is a Postgres implementation for products.
type ProductRepository struct {
	db DBTX
}

// NewProductRepository constructs a repository.
func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetProduct loads a product by code, case-insensitively.
func (r *ProductRepository) GetProduct(ctx context.Context, code string) (*masterdata.Product, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("product repo: nil db")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("product repo: empty code")
	}

	var product masterdata.Product
	if err := r.db.QueryRowContext(ctx, `
SELECT code, name, category, is_fuel, unit, unit_price, stock, minimum_stock
FROM products
WHERE UPPER(code) = UPPER($1)
LIMIT 1`, code).Scan(
		&product.Code,
		&product.Name,
		&product.Category,
		&product.IsFuel,
		&product.Unit,
		&product.UnitPrice,
		&product.Stock,
		&product.MinimumStock,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// SaveProduct upserts a product.
func (r *ProductRepository) SaveProduct(ctx context.Context, product *masterdata.Product) error {
	if r == nil || r.db == nil {
		return errors.New("product repo: nil db")
	}
	if product == nil {
		return errors.New("product repo: nil product")
	}
	if err := product.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO products (code, name, category, is_fuel, unit, unit_price, stock, minimum_stock)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (code)
DO UPDATE SET
	name = EXCLUDED.name,
	category = EXCLUDED.category,
	is_fuel = EXCLUDED.is_fuel,
	unit = EXCLUDED.unit,
	unit_price = EXCLUDED.unit_price,
	stock = EXCLUDED.stock,
	minimum_stock = EXCLUDED.minimum_stock,
	updated_at = NOW()`,
		product.Code, product.Name, product.Category, product.IsFuel, product.Unit, product.UnitPrice, product.Stock, product.MinimumStock)
	return err
}
