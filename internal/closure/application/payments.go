package application

import (
	"fmt"

	"github.com/shopspring/decimal"

	closure "fuel-backoffice/internal/closure/domain"
)

// DefaultPaymentTolerance is the absolute difference accepted between the
// declared total and the sum of method amounts.
var DefaultPaymentTolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// PaymentReconciler checks a payment declaration against calculated sales.
// It never mutates state.
type PaymentReconciler struct {
	Tolerance decimal.Decimal
}

// NewPaymentReconciler constructs a reconciler. A non-positive tolerance uses the default.
func NewPaymentReconciler(tolerance decimal.Decimal) PaymentReconciler {
	if !tolerance.IsPositive() {
		tolerance = DefaultPaymentTolerance
	}
	return PaymentReconciler{Tolerance: tolerance}
}

// Reconcile returns the reconciliation block, warnings about unrecognised
// methods, and a *closure.ReconciliationError when the method amounts do not
// add up to the declared total.
func (r PaymentReconciler) Reconcile(summary closure.PaymentSummary, calculated decimal.Decimal) (closure.Reconciliation, []string, error) {
	tolerance := r.Tolerance
	if !tolerance.IsPositive() {
		tolerance = DefaultPaymentTolerance
	}
	declared := summary.DeclaredTotal
	rec := closure.Reconciliation{
		DeclaredTotal:   declared,
		CalculatedTotal: calculated,
		Variance:        declared.Sub(calculated),
		MethodSum:       decimal.Zero,
		Methods:         make([]closure.MethodBreakdown, 0, len(summary.Methods)),
	}

	var warnings []string
	bucketTotals := make(map[closure.Bucket]decimal.Decimal, len(closure.Buckets))
	for _, declaredMethod := range summary.Methods {
		method, ok := closure.ParsePaymentMethod(declaredMethod.Method)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("payment method %q not recognised, counted as other", declaredMethod.Method))
		}
		if declaredMethod.Amount.IsNegative() {
			warnings = append(warnings, fmt.Sprintf("payment method %q has negative amount %s", declaredMethod.Method, declaredMethod.Amount.StringFixed(2)))
		}
		bucket := method.Bucket()
		bucketTotals[bucket] = bucketTotals[bucket].Add(declaredMethod.Amount)
		rec.MethodSum = rec.MethodSum.Add(declaredMethod.Amount)
		rec.Methods = append(rec.Methods, closure.MethodBreakdown{
			Declared:   declaredMethod.Method,
			Method:     method,
			Bucket:     bucket,
			Amount:     declaredMethod.Amount,
			Percentage: percentOf(declaredMethod.Amount, declared),
		})
	}
	for _, bucket := range closure.Buckets {
		amount := bucketTotals[bucket]
		rec.Buckets = append(rec.Buckets, closure.BucketAmount{
			Bucket:     bucket,
			Amount:     amount,
			Percentage: percentOf(amount, declared),
		})
	}

	rec.MethodDiscrepancy = declared.Sub(rec.MethodSum)
	if rec.MethodDiscrepancy.Abs().GreaterThan(tolerance) {
		return rec, warnings, &closure.ReconciliationError{
			Declared:    declared,
			MethodSum:   rec.MethodSum,
			Discrepancy: rec.MethodDiscrepancy,
			Tolerance:   tolerance,
		}
	}
	rec.Balanced = true
	return rec, warnings, nil
}

func percentOf(amount, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return amount.Div(total).Mul(hundred).Round(2)
}
