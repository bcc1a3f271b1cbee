package masterdata

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"fuel-backoffice/internal/units"
)

// Product is a sellable item. Fuel products are stocked in tanks, everything
// else carries its own stock figure.
type Product struct {
	Code         string
	Name         string
	Category     string
	IsFuel       bool
	Unit         string
	UnitPrice    decimal.Decimal
	Stock        float64
	MinimumStock float64
}

// Validate checks product invariants.
func (p Product) Validate() error {
	if p.Code == "" {
		return errors.New("product: empty code")
	}
	if p.Unit == "" {
		return errors.New("product: empty unit")
	}
	if p.UnitPrice.IsNegative() {
		return errors.New("product: negative unit price")
	}
	if p.IsFuel {
		if _, err := units.Parse(p.Unit); err != nil {
			return err
		}
	}
	return nil
}

// VolumeUnit resolves the product unit as a volumetric unit.
func (p Product) VolumeUnit() (units.Unit, error) {
	return units.Parse(p.Unit)
}

// PricePerLiter derives the liter price from the unit price. Products sold in
// gallons are divided by the gallon factor.
func (p Product) PricePerLiter() (decimal.Decimal, error) {
	unit, err := p.VolumeUnit()
	if err != nil {
		return decimal.Zero, err
	}
	factor, err := units.LitersPer(unit)
	if err != nil {
		return decimal.Zero, err
	}
	return p.UnitPrice.Div(decimal.NewFromFloat(factor)), nil
}

// SameCode compares product codes ignoring case and surrounding spaces.
func SameCode(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Clone returns a copy safe to mutate.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
