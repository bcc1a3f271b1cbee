package auth

import (
	"context"
	"errors"

	masterdata "fuel-backoffice/internal/masterdata/domain"
)

var (
	// ErrTenantMismatch indicates resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
	// ErrPointOfSaleInactive rejects new shift work at a closed point of sale.
	ErrPointOfSaleInactive = errors.New("point of sale inactive")
)

// PointOfSaleTenantChecker validates point of sale ownership. Reads only need
// ownership; EnsurePointOfSaleOpen also requires the point of sale to be active.
type PointOfSaleTenantChecker interface {
	EnsurePointOfSaleTenant(ctx context.Context, tenantID, pointOfSaleID string) error
	EnsurePointOfSaleOpen(ctx context.Context, tenantID, pointOfSaleID string) error
}

// PointOfSaleChecker checks ownership and activity using masterdata.
type PointOfSaleChecker struct {
	repo masterdata.PointOfSaleRepository
}

// NewPointOfSaleChecker constructs a checker. A nil repository disables checks.
func NewPointOfSaleChecker(repo masterdata.PointOfSaleRepository) *PointOfSaleChecker {
	if repo == nil {
		return nil
	}
	return &PointOfSaleChecker{repo: repo}
}

// EnsurePointOfSaleTenant verifies the point of sale belongs to the tenant.
// Closed points of sale stay readable.
func (c *PointOfSaleChecker) EnsurePointOfSaleTenant(ctx context.Context, tenantID, pointOfSaleID string) error {
	if c == nil || c.repo == nil || tenantID == "" || pointOfSaleID == "" {
		return nil
	}
	_, err := c.owned(ctx, tenantID, pointOfSaleID)
	return err
}

// EnsurePointOfSaleOpen verifies ownership when a tenant is known and rejects
// inactive points of sale for every caller.
func (c *PointOfSaleChecker) EnsurePointOfSaleOpen(ctx context.Context, tenantID, pointOfSaleID string) error {
	if c == nil || c.repo == nil || pointOfSaleID == "" {
		return nil
	}
	pos, err := c.owned(ctx, tenantID, pointOfSaleID)
	if err != nil {
		return err
	}
	if !pos.Active {
		return ErrPointOfSaleInactive
	}
	return nil
}

func (c *PointOfSaleChecker) owned(ctx context.Context, tenantID, pointOfSaleID string) (*masterdata.PointOfSale, error) {
	pos, err := c.repo.GetPointOfSale(ctx, pointOfSaleID)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, ErrNotFound
	}
	if tenantID != "" && pos.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}
	return pos, nil
}
