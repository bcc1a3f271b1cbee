package application

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	masterdata "fuel-backoffice/internal/masterdata/domain"
	"fuel-backoffice/internal/units"
)

// Catalog is a bootstrap description of a site: points of sale, products,
// tanks and dispensers. It is loaded from YAML.
type Catalog struct {
	PointsOfSale []PointOfSaleSeed `yaml:"points_of_sale"`
	Products     []ProductSeed     `yaml:"products"`
	Tanks        []TankSeed        `yaml:"tanks"`
	Dispensers   []DispenserSeed   `yaml:"dispensers"`
}

// PointOfSaleSeed describes a point of sale.
type PointOfSaleSeed struct {
	ID       string `yaml:"id"`
	TenantID string `yaml:"tenant_id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
	Currency string `yaml:"currency"`
}

// ProductSeed describes a product. Price is a decimal string.
type ProductSeed struct {
	Code         string  `yaml:"code"`
	Name         string  `yaml:"name"`
	Category     string  `yaml:"category"`
	IsFuel       bool    `yaml:"is_fuel"`
	Unit         string  `yaml:"unit"`
	UnitPrice    string  `yaml:"unit_price"`
	Stock        float64 `yaml:"stock"`
	MinimumStock float64 `yaml:"minimum_stock"`
}

// TankSeed describes a tank.
type TankSeed struct {
	ID             string  `yaml:"id"`
	PointOfSaleID  string  `yaml:"point_of_sale_id"`
	Name           string  `yaml:"name"`
	ProductCode    string  `yaml:"product_code"`
	TankType       string  `yaml:"tank_type"`
	VolumeUnit     string  `yaml:"volume_unit"`
	CapacityLiters float64 `yaml:"capacity_liters"`
	LevelLiters    float64 `yaml:"level_liters"`
	MinimumLiters  float64 `yaml:"minimum_liters"`
	DiameterCM     float64 `yaml:"diameter_cm"`
	MaxHeightCM    float64 `yaml:"max_height_cm"`
}

// DispenserSeed describes a dispenser with its hoses.
type DispenserSeed struct {
	ID            string     `yaml:"id"`
	PointOfSaleID string     `yaml:"point_of_sale_id"`
	Number        int        `yaml:"number"`
	Hoses         []HoseSeed `yaml:"hoses"`
}

// HoseSeed describes a hose.
type HoseSeed struct {
	ID             string  `yaml:"id"`
	Number         int     `yaml:"number"`
	ProductCode    string  `yaml:"product_code"`
	CurrentReading float64 `yaml:"current_reading"`
}

// LoadCatalogFile reads a catalog from a YAML file.
func LoadCatalogFile(path string) (Catalog, error) {
	var catalog Catalog
	data, err := os.ReadFile(path)
	if err != nil {
		return catalog, err
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return catalog, fmt.Errorf("catalog %s: %w", path, err)
	}
	return catalog, nil
}

// CatalogService validates and stores masterdata.
type CatalogService struct {
	pointsOfSale masterdata.PointOfSaleRepository
	products     masterdata.ProductRepository
	tanks        masterdata.TankRepository
	dispensers   masterdata.DispenserRepository
}

// NewCatalogService constructs a catalog service.
func NewCatalogService(
	pointsOfSale masterdata.PointOfSaleRepository,
	products masterdata.ProductRepository,
	tanks masterdata.TankRepository,
	dispensers masterdata.DispenserRepository,
) (*CatalogService, error) {
	if pointsOfSale == nil || products == nil || tanks == nil || dispensers == nil {
		return nil, errors.New("catalog service: nil repository")
	}
	return &CatalogService{pointsOfSale: pointsOfSale, products: products, tanks: tanks, dispensers: dispensers}, nil
}

// Seed upserts every entity of the catalog. It stops on the first invalid entry.
func (s *CatalogService) Seed(ctx context.Context, catalog Catalog) error {
	for _, seed := range catalog.PointsOfSale {
		pos := &masterdata.PointOfSale{
			ID:       seed.ID,
			TenantID: seed.TenantID,
			Name:     seed.Name,
			Timezone: seed.Timezone,
			Currency: seed.Currency,
			Active:   true,
		}
		if err := s.pointsOfSale.SavePointOfSale(ctx, pos); err != nil {
			return fmt.Errorf("point of sale %s: %w", seed.ID, err)
		}
	}
	for _, seed := range catalog.Products {
		price := decimal.Zero
		if seed.UnitPrice != "" {
			parsed, err := decimal.NewFromString(seed.UnitPrice)
			if err != nil {
				return fmt.Errorf("product %s: unit price: %w", seed.Code, err)
			}
			price = parsed
		}
		product := &masterdata.Product{
			Code:         seed.Code,
			Name:         seed.Name,
			Category:     seed.Category,
			IsFuel:       seed.IsFuel,
			Unit:         seed.Unit,
			UnitPrice:    price,
			Stock:        seed.Stock,
			MinimumStock: seed.MinimumStock,
		}
		if err := s.products.SaveProduct(ctx, product); err != nil {
			return fmt.Errorf("product %s: %w", seed.Code, err)
		}
	}
	for _, seed := range catalog.Tanks {
		unit := units.Liter
		if seed.VolumeUnit != "" {
			parsed, err := units.Parse(seed.VolumeUnit)
			if err != nil {
				return fmt.Errorf("tank %s: %w", seed.ID, err)
			}
			unit = parsed
		}
		tank := &masterdata.Tank{
			ID:             seed.ID,
			PointOfSaleID:  seed.PointOfSaleID,
			Name:           seed.Name,
			ProductCode:    seed.ProductCode,
			TankType:       seed.TankType,
			VolumeUnit:     unit,
			CapacityLiters: seed.CapacityLiters,
			LevelLiters:    seed.LevelLiters,
			MinimumLiters:  seed.MinimumLiters,
			DiameterCM:     seed.DiameterCM,
			MaxHeightCM:    seed.MaxHeightCM,
		}
		if err := s.tanks.SaveTank(ctx, tank); err != nil {
			return fmt.Errorf("tank %s: %w", seed.ID, err)
		}
	}
	for _, seed := range catalog.Dispensers {
		dispenser := &masterdata.Dispenser{
			ID:            seed.ID,
			PointOfSaleID: seed.PointOfSaleID,
			Number:        seed.Number,
		}
		for _, hose := range seed.Hoses {
			dispenser.Hoses = append(dispenser.Hoses, masterdata.Hose{
				ID:              hose.ID,
				DispenserID:     seed.ID,
				Number:          hose.Number,
				ProductCode:     hose.ProductCode,
				PreviousReading: hose.CurrentReading,
				CurrentReading:  hose.CurrentReading,
			})
		}
		if err := s.dispensers.SaveDispenser(ctx, dispenser); err != nil {
			return fmt.Errorf("dispenser %s: %w", seed.ID, err)
		}
	}
	return nil
}
