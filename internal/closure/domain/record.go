package closure

import (
	"time"
)

// SchemaVersion is the version of the ClosureRecord layout.
const SchemaVersion = 1

// ClosureRecord is the immutable audit record of a committed closure.
type ClosureRecord struct {
	ID            string             `json:"id"`
	SchemaVersion int                `json:"schema_version"`
	PointOfSaleID string             `json:"point_of_sale_id"`
	StartTime     time.Time          `json:"start_time"`
	FinishTime    time.Time          `json:"finish_time"`
	Input         InputSnapshot      `json:"input"`
	Output        OutputSnapshot     `json:"output"`
	Metadata      ProcessingMetadata `json:"metadata"`
}

// InputSnapshot is the request exactly as received.
type InputSnapshot struct {
	Request ShiftClosureRequest `json:"request"`
}

// OutputSnapshot is the computed outcome.
type OutputSnapshot struct {
	Status       Status               `json:"status"`
	Dispensers   []DispenserSummary   `json:"dispensers"`
	Tanks        []TankSummary        `json:"tanks"`
	TankTotals   TankTotals           `json:"tank_totals"`
	ProductSales []ProductSaleOutcome `json:"product_sales"`
	Payments     *Reconciliation      `json:"payments,omitempty"`
	Totals       Totals               `json:"totals"`
	Issues       []Issue              `json:"issues"`
}

// StageTiming is how long one stage took.
type StageTiming struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// ProcessingMetadata describes the run that produced the record.
type ProcessingMetadata struct {
	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`
	Stages      []StageTiming `json:"stages"`
	Actor       string        `json:"actor,omitempty"`
}

// Result rebuilds the caller-facing result from the record.
func (r ClosureRecord) Result() Result {
	result := Result{
		ClosureID:     r.ID,
		PointOfSaleID: r.PointOfSaleID,
		Status:        r.Output.Status,
		Dispensers:    r.Output.Dispensers,
		Tanks:         r.Output.Tanks,
		TankTotals:    r.Output.TankTotals,
		ProductSales:  r.Output.ProductSales,
		Payments:      r.Output.Payments,
		Totals:        r.Output.Totals,
		Issues:        r.Output.Issues,
	}
	result.Errors, result.Warnings = SplitIssues(r.Output.Issues)
	return result
}

// SplitIssues renders issues into the error and warning string lists.
func SplitIssues(issues []Issue) ([]string, []string) {
	errs := []string{}
	warnings := []string{}
	for _, issue := range issues {
		if issue.IsWarning() {
			warnings = append(warnings, issue.String())
			continue
		}
		errs = append(errs, issue.String())
	}
	return errs, warnings
}
