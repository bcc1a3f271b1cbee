package application

import (
	"time"

	"github.com/shopspring/decimal"

	closure "fuel-backoffice/internal/closure/domain"
	"fuel-backoffice/internal/units"
)

// stageResult is what one stage contributes to the closure. Stages never
// share mutable summaries; the final result is a fold over these.
type stageResult struct {
	stage        closure.Stage
	aborted      bool
	dispensers   []closure.DispenserSummary
	tanks        []closure.TankSummary
	productSales []closure.ProductSaleOutcome
	payments     *closure.Reconciliation
	totals       closure.Totals
	issues       []closure.Issue
	duration     time.Duration
}

func (r *stageResult) warn(item, message string) {
	r.issues = append(r.issues, closure.Issue{Stage: r.stage, Kind: closure.KindWarning, Item: item, Message: message})
}

func (r *stageResult) fail(kind closure.IssueKind, item, message string) {
	r.issues = append(r.issues, closure.Issue{Stage: r.stage, Kind: kind, Item: item, Message: message})
}

func (r stageResult) counts() (errs, warnings int) {
	for _, issue := range r.issues {
		if issue.IsWarning() {
			warnings++
			continue
		}
		errs++
	}
	return errs, warnings
}

func zeroTotals() closure.Totals {
	return closure.Totals{FuelValue: decimal.Zero, ProductValue: decimal.Zero, Value: decimal.Zero}
}

// fold merges stage results into a Result. Status and ids are set by the caller.
func fold(results []stageResult) closure.Result {
	out := closure.Result{
		Dispensers:   []closure.DispenserSummary{},
		Tanks:        []closure.TankSummary{},
		ProductSales: []closure.ProductSaleOutcome{},
		Issues:       []closure.Issue{},
		Totals:       zeroTotals(),
	}
	for _, r := range results {
		out.Dispensers = append(out.Dispensers, r.dispensers...)
		out.Tanks = append(out.Tanks, r.tanks...)
		out.ProductSales = append(out.ProductSales, r.productSales...)
		if r.payments != nil {
			out.Payments = r.payments
		}
		out.Totals = out.Totals.Add(r.totals)
		out.Issues = append(out.Issues, r.issues...)
	}
	out.Totals.Liters = units.Round2(out.Totals.Liters)
	out.Totals.Gallons = units.Round2(out.Totals.Liters / units.LitersPerUSGallon)

	for _, tank := range out.Tanks {
		if tank.Outcome != closure.OutcomeProcessed {
			continue
		}
		out.TankTotals.VolumeLiters += tank.LevelLiters
		out.TankTotals.CapacityLiters += tank.CapacityLiters
	}
	out.TankTotals.VolumeLiters = units.Round2(out.TankTotals.VolumeLiters)
	out.TankTotals.CapacityLiters = units.Round2(out.TankTotals.CapacityLiters)
	if out.TankTotals.CapacityLiters > 0 {
		out.TankTotals.FillPercent = units.Round2(out.TankTotals.VolumeLiters / out.TankTotals.CapacityLiters * 100)
	}
	out.Errors, out.Warnings = closure.SplitIssues(out.Issues)
	return out
}

// deriveStatus applies the status rules: an aborted stage or a persistence
// failure fails the closure, item and reconciliation errors degrade it.
func deriveStatus(results []stageResult) closure.Status {
	degraded := false
	for _, r := range results {
		if r.aborted {
			return closure.StatusFailed
		}
		for _, issue := range r.issues {
			switch issue.Kind {
			case closure.KindPersistence, closure.KindValidation:
				return closure.StatusFailed
			case closure.KindItem, closure.KindReconciliation:
				degraded = true
			}
		}
	}
	if degraded {
		return closure.StatusSucceededWithErrors
	}
	return closure.StatusSucceeded
}
