package masterdata

import "context"

// Lookups return (nil, nil) when the entity does not exist.

// PointOfSaleRepository manages point of sale persistence.
type PointOfSaleRepository interface {
	GetPointOfSale(ctx context.Context, id string) (*PointOfSale, error)
	SavePointOfSale(ctx context.Context, pos *PointOfSale) error
}

// ProductRepository loads products by code.
type ProductRepository interface {
	GetProduct(ctx context.Context, code string) (*Product, error)
	SaveProduct(ctx context.Context, product *Product) error
}

// TankRepository loads and stores tanks.
type TankRepository interface {
	GetTank(ctx context.Context, id string) (*Tank, error)
	FindTankByProduct(ctx context.Context, pointOfSaleID, productCode string) (*Tank, error)
	SaveTank(ctx context.Context, tank *Tank) error
}

// DispenserRepository loads dispensers with their hoses.
type DispenserRepository interface {
	GetDispenser(ctx context.Context, pointOfSaleID string, number int) (*Dispenser, error)
	SaveDispenser(ctx context.Context, dispenser *Dispenser) error
}

// ReadingHistoryRepository lists appended meter history.
type ReadingHistoryRepository interface {
	ListReadingHistory(ctx context.Context, hoseID string, limit int) ([]ReadingHistory, error)
}
