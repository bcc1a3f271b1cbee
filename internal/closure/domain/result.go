package closure

import (
	"github.com/shopspring/decimal"
)

// Status is the terminal state of a closure.
type Status string

const (
	StatusSucceeded           Status = "succeeded"
	StatusSucceededWithErrors Status = "succeeded_with_errors"
	StatusFailed              Status = "failed"
)

// Stage names a step of the closure pipeline.
type Stage string

const (
	StagePreValidation Stage = "pre_validation"
	StageDispensers    Stage = "dispensers"
	StageTanks         Stage = "tanks"
	StageProductSales  Stage = "product_sales"
	StageStatistics    Stage = "statistics"
	StagePayments      Stage = "payments"
	StagePersistence   Stage = "persistence"
)

// IssueKind classifies a recorded problem.
type IssueKind string

const (
	KindValidation     IssueKind = "validation"
	KindItem           IssueKind = "item"
	KindReconciliation IssueKind = "reconciliation"
	KindPersistence    IssueKind = "persistence"
	KindWarning        IssueKind = "warning"
)

// Issue is a typed error or warning raised by a stage.
type Issue struct {
	Stage   Stage     `json:"stage"`
	Kind    IssueKind `json:"kind"`
	Item    string    `json:"item,omitempty"`
	Message string    `json:"message"`
}

// IsWarning reports whether the issue is advisory.
func (i Issue) IsWarning() bool { return i.Kind == KindWarning }

func (i Issue) String() string {
	if i.Item == "" {
		return i.Message
	}
	return i.Item + ": " + i.Message
}

// Item outcome labels.
const (
	OutcomeProcessed = "processed"
	OutcomeNoSale    = "no_sale"
	OutcomeFailed    = "failed"
)

// HoseSummary is the per-hose detail inside a dispenser summary.
type HoseSummary struct {
	HoseNumber       int             `json:"hose_number"`
	ProductCode      string          `json:"product_code"`
	PreviousReading  float64         `json:"previous_reading"`
	CurrentReading   float64         `json:"current_reading"`
	Sold             float64         `json:"sold"`
	Unit             string          `json:"unit"`
	SoldLiters       float64         `json:"sold_liters"`
	SoldGallons      float64         `json:"sold_gallons"`
	PricePerLiter    decimal.Decimal `json:"price_per_liter"`
	PricePerGallon   decimal.Decimal `json:"price_per_gallon"`
	Value            decimal.Decimal `json:"value"`
	InventoryUpdated bool            `json:"inventory_updated"`
	Outcome          string          `json:"outcome"`
	Error            string          `json:"error,omitempty"`
}

// DispenserSummary aggregates the hoses of one dispenser.
type DispenserSummary struct {
	DispenserNumber int             `json:"dispenser_number"`
	SoldLiters      float64         `json:"sold_liters"`
	SoldGallons     float64         `json:"sold_gallons"`
	Value           decimal.Decimal `json:"value"`
	Hoses           []HoseSummary   `json:"hoses"`
}

// TankSummary reports the level set from a height reading.
type TankSummary struct {
	TankID           string  `json:"tank_id"`
	ProductCode      string  `json:"product_code"`
	FluidHeightCM    float64 `json:"fluid_height_cm"`
	MeasuredLiters   float64 `json:"measured_liters"`
	LevelLiters      float64 `json:"level_liters"`
	BookLiters       float64 `json:"book_liters"`
	DifferenceLiters float64 `json:"difference_liters"`
	CapacityLiters   float64 `json:"capacity_liters"`
	FillPercent      float64 `json:"fill_percent"`
	Outcome          string  `json:"outcome"`
	Error            string  `json:"error,omitempty"`
}

// TankTotals aggregates processed tanks.
type TankTotals struct {
	VolumeLiters   float64 `json:"volume_liters"`
	CapacityLiters float64 `json:"capacity_liters"`
	FillPercent    float64 `json:"fill_percent"`
}

// ProductSaleOutcome is the result of one declared product sale.
type ProductSaleOutcome struct {
	ProductCode       string          `json:"product_code"`
	Quantity          float64         `json:"quantity"`
	Unit              string          `json:"unit"`
	StockQuantity     float64         `json:"stock_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	DeclaredLineTotal decimal.Decimal `json:"declared_line_total"`
	Value             decimal.Decimal `json:"value"`
	RemainingStock    float64         `json:"remaining_stock"`
	Outcome           string          `json:"outcome"`
	Error             string          `json:"error,omitempty"`
}

// Totals are the aggregate figures of a closure.
type Totals struct {
	Liters           float64         `json:"liters"`
	Gallons          float64         `json:"gallons"`
	FuelValue        decimal.Decimal `json:"fuel_value"`
	ProductValue     decimal.Decimal `json:"product_value"`
	Value            decimal.Decimal `json:"value"`
	FuelSales        int             `json:"fuel_sales"`
	ProductSales     int             `json:"product_sales"`
	TransactionCount int             `json:"transaction_count"`
}

// Add returns the sum of both totals.
func (t Totals) Add(other Totals) Totals {
	return Totals{
		Liters:           t.Liters + other.Liters,
		Gallons:          t.Gallons + other.Gallons,
		FuelValue:        t.FuelValue.Add(other.FuelValue),
		ProductValue:     t.ProductValue.Add(other.ProductValue),
		Value:            t.Value.Add(other.Value),
		FuelSales:        t.FuelSales + other.FuelSales,
		ProductSales:     t.ProductSales + other.ProductSales,
		TransactionCount: t.TransactionCount + other.TransactionCount,
	}
}

// Result is the value object returned for every closure attempt.
type Result struct {
	ClosureID     string               `json:"closure_id"`
	PointOfSaleID string               `json:"point_of_sale_id"`
	Status        Status               `json:"status"`
	Dispensers    []DispenserSummary   `json:"dispensers"`
	Tanks         []TankSummary        `json:"tanks"`
	TankTotals    TankTotals           `json:"tank_totals"`
	ProductSales  []ProductSaleOutcome `json:"product_sales"`
	Payments      *Reconciliation      `json:"payments,omitempty"`
	Totals        Totals               `json:"totals"`
	Errors        []string             `json:"errors"`
	Warnings      []string             `json:"warnings"`
	Issues        []Issue              `json:"issues"`
}

// HasItemErrors reports whether any non-warning issue other than validation
// or persistence was recorded.
func (r Result) HasItemErrors() bool {
	for _, issue := range r.Issues {
		if issue.Kind == KindItem || issue.Kind == KindReconciliation {
			return true
		}
	}
	return false
}
