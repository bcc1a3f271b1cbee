package masterdata

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestProductPricePerLiterFromGallons(t *testing.T) {
	product := Product{Code: "DIESEL", IsFuel: true, Unit: "galones", UnitPrice: decimal.RequireFromString("3.78541")}
	price, err := product.PricePerLiter()
	if err != nil {
		t.Fatalf("price per liter: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected 1 per liter, got %s", price)
	}
}

func TestProductValidateRejectsUnknownFuelUnit(t *testing.T) {
	product := Product{Code: "X", IsFuel: true, Unit: "barrel"}
	if err := product.Validate(); err == nil {
		t.Fatalf("expected unit error")
	}
	product.IsFuel = false
	if err := product.Validate(); err != nil {
		t.Fatalf("non fuel products may use any unit: %v", err)
	}
}

func TestTankClampLevel(t *testing.T) {
	tank := Tank{CapacityLiters: 1000}
	if got, clamped := tank.ClampLevel(1200); got != 1000 || !clamped {
		t.Fatalf("expected clamp to capacity, got %v %v", got, clamped)
	}
	if got, clamped := tank.ClampLevel(-3); got != 0 || !clamped {
		t.Fatalf("expected clamp to zero, got %v %v", got, clamped)
	}
	if got, clamped := tank.ClampLevel(400); got != 400 || clamped {
		t.Fatalf("expected passthrough, got %v %v", got, clamped)
	}
}

func TestDispenserValidateDuplicateHose(t *testing.T) {
	dispenser := Dispenser{ID: "d1", PointOfSaleID: "pos", Number: 1, Hoses: []Hose{{ID: "h1", Number: 1}, {ID: "h2", Number: 1}}}
	if err := dispenser.Validate(); err == nil {
		t.Fatalf("expected duplicate hose error")
	}
}
