package closure

import (
	"errors"
	"testing"
	"time"
)

func TestValidateRejectsRepeatedTank(t *testing.T) {
	start := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	req := ShiftClosureRequest{
		PointOfSaleID: "pos-1",
		StartTime:     start,
		FinishTime:    start.Add(8 * time.Hour),
		Payments:      &PaymentSummary{},
		Tanks:         []TankReading{{TankID: "tank-1", FluidHeight: 100}, {TankID: " tank-1", FluidHeight: 120}},
	}
	if err := req.Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	req.Tanks = req.Tanks[:1]
	if err := req.Validate(); err != nil {
		t.Fatalf("expected single reading to pass, got %v", err)
	}
}
