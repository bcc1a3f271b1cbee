package closure

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidRequest marks a structurally malformed closure request.
var ErrInvalidRequest = errors.New("closure: invalid request")

// ShiftClosureRequest is everything an operator declares at the end of a shift.
type ShiftClosureRequest struct {
	PointOfSaleID            string             `json:"point_of_sale_id"`
	ShiftID                  string             `json:"shift_id,omitempty"`
	Operator                 string             `json:"operator,omitempty"`
	StartTime                time.Time          `json:"start_time"`
	FinishTime               time.Time          `json:"finish_time"`
	Dispensers               []DispenserReading `json:"dispensers"`
	Tanks                    []TankReading      `json:"tanks"`
	ProductSales             []ProductSale      `json:"product_sales"`
	Payments                 *PaymentSummary    `json:"payments,omitempty"`
	DeclaredTransactionCount *int               `json:"declared_transaction_count,omitempty"`
	Observations             string             `json:"observations,omitempty"`
}

// DispenserReading groups the hose readings of one dispenser.
type DispenserReading struct {
	DispenserNumber int           `json:"dispenser_number"`
	Hoses           []HoseReading `json:"hoses"`
}

// HoseReading is a meter pair declared for one hose.
type HoseReading struct {
	HoseNumber      int     `json:"hose_number"`
	ProductCode     string  `json:"product_code"`
	PreviousReading float64 `json:"previous_reading"`
	CurrentReading  float64 `json:"current_reading"`
	Unit            string  `json:"unit,omitempty"`
}

// TankReading is a dipstick measurement, height in centimeters.
type TankReading struct {
	TankID       string  `json:"tank_id"`
	FluidHeight  float64 `json:"fluid_height"`
	TankType     string  `json:"tank_type,omitempty"`
	Observations string  `json:"observations,omitempty"`
}

// ProductSale is a declared sale of a non-metered item.
type ProductSale struct {
	ProductCode       string          `json:"product_code"`
	Quantity          float64         `json:"quantity"`
	Unit              string          `json:"unit,omitempty"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	DeclaredLineTotal decimal.Decimal `json:"declared_line_total"`
}

// PaymentSummary is the cashier's declaration of money taken.
type PaymentSummary struct {
	DeclaredTotal decimal.Decimal `json:"declared_total"`
	Methods       []MethodAmount  `json:"methods"`
}

// MethodAmount is the amount declared for one payment method.
type MethodAmount struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// Validate checks request shape only. Business checks happen in the closure stages.
func (r ShiftClosureRequest) Validate() error {
	if strings.TrimSpace(r.PointOfSaleID) == "" {
		return fmt.Errorf("%w: empty point of sale id", ErrInvalidRequest)
	}
	if r.StartTime.IsZero() || r.FinishTime.IsZero() {
		return fmt.Errorf("%w: shift window requires start and finish time", ErrInvalidRequest)
	}
	if r.FinishTime.Before(r.StartTime) {
		return fmt.Errorf("%w: finish time before start time", ErrInvalidRequest)
	}
	if r.Payments == nil {
		return fmt.Errorf("%w: missing payment summary", ErrInvalidRequest)
	}
	for _, dispenser := range r.Dispensers {
		if dispenser.DispenserNumber <= 0 {
			return fmt.Errorf("%w: dispenser number must be positive", ErrInvalidRequest)
		}
		for _, hose := range dispenser.Hoses {
			if hose.HoseNumber <= 0 {
				return fmt.Errorf("%w: dispenser %d: hose number must be positive", ErrInvalidRequest, dispenser.DispenserNumber)
			}
		}
	}
	tanks := make(map[string]struct{}, len(r.Tanks))
	for _, tank := range r.Tanks {
		id := strings.TrimSpace(tank.TankID)
		if id == "" {
			return fmt.Errorf("%w: tank reading without tank id", ErrInvalidRequest)
		}
		if _, dup := tanks[id]; dup {
			return fmt.Errorf("%w: tank %s read more than once", ErrInvalidRequest, id)
		}
		tanks[id] = struct{}{}
	}
	for _, sale := range r.ProductSales {
		if strings.TrimSpace(sale.ProductCode) == "" {
			return fmt.Errorf("%w: product sale without product code", ErrInvalidRequest)
		}
	}
	if r.DeclaredTransactionCount != nil && *r.DeclaredTransactionCount < 0 {
		return fmt.Errorf("%w: negative declared transaction count", ErrInvalidRequest)
	}
	return nil
}

// HoseCount is the number of hose readings across dispensers.
func (r ShiftClosureRequest) HoseCount() int {
	count := 0
	for _, dispenser := range r.Dispensers {
		count += len(dispenser.Hoses)
	}
	return count
}
