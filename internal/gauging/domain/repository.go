package gauging

import "context"

// Repository persists calibration tables.
type Repository interface {
	// LoadTable returns (nil, nil) when the tank has no table.
	LoadTable(ctx context.Context, tankID string) (*Table, error)
	// ReplaceTable swaps the stored table as a whole.
	ReplaceTable(ctx context.Context, table Table) error
}
