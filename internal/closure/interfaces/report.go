package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	closure "fuel-backoffice/internal/closure/domain"
)

// Report content types.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// BuildClosurePDF renders a closure record as a one-document shift report.
func BuildClosurePDF(record *closure.ClosureRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("closure report: nil record")
	}
	out := record.Output

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Shift Closure")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Closure: %s", record.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Point of sale: %s", record.PointOfSaleID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Shift: %s to %s", record.StartTime.Format(time.RFC3339), record.FinishTime.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", out.Status))
	pdf.Ln(5)
	if record.Metadata.Actor != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Operator: %s", record.Metadata.Actor))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Processed: %s", record.Metadata.ProcessedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Fuel sold: %.2f L (%.2f gal)", out.Totals.Liters, out.Totals.Gallons))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Fuel value: %s", out.Totals.FuelValue.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Product value: %s", out.Totals.ProductValue.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total value: %s", out.Totals.Value.StringFixed(2)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(20, 6, "Disp.", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 6, "Hose", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Product", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Liters", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Gallons", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, dispenser := range out.Dispensers {
		for _, hose := range dispenser.Hoses {
			pdf.CellFormat(20, 6, fmt.Sprintf("%d", dispenser.DispenserNumber), "1", 0, "C", false, 0, "")
			pdf.CellFormat(15, 6, fmt.Sprintf("%d", hose.HoseNumber), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, hose.ProductCode, "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", hose.SoldLiters), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", hose.SoldGallons), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, hose.Value.StringFixed(2), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	if len(out.Tanks) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(35, 6, "Tank", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Height (cm)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Level (L)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Difference (L)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Fill %", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, tank := range out.Tanks {
			pdf.CellFormat(35, 6, tank.TankID, "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", tank.FluidHeightCM), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", tank.LevelLiters), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", tank.DifferenceLiters), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%.2f", tank.FillPercent), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	if out.Payments != nil {
		pdf.Ln(4)
		pdf.Cell(0, 6, fmt.Sprintf("Declared: %s  Calculated: %s  Variance: %s",
			out.Payments.DeclaredTotal.StringFixed(2), out.Payments.CalculatedTotal.StringFixed(2), out.Payments.Variance.StringFixed(2)))
		pdf.Ln(5)
		for _, bucket := range out.Payments.Buckets {
			pdf.Cell(0, 6, fmt.Sprintf("%s: %s (%s%%)", bucket.Bucket, bucket.Amount.StringFixed(2), bucket.Percentage.StringFixed(2)))
			pdf.Ln(5)
		}
	}

	errs, warnings := closure.SplitIssues(out.Issues)
	if len(errs) > 0 || len(warnings) > 0 {
		pdf.Ln(4)
		for _, msg := range errs {
			pdf.MultiCell(0, 5, "Error: "+msg, "", "L", false)
		}
		for _, msg := range warnings {
			pdf.MultiCell(0, 5, "Warning: "+msg, "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildClosureXLSX renders a closure record as a workbook with summary,
// hoses, tanks, sales, payments and issues sheets.
func BuildClosureXLSX(record *closure.ClosureRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("closure report: nil record")
	}
	out := record.Output

	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	hosesSheet := "hoses"
	tanksSheet := "tanks"
	salesSheet := "sales"
	paymentsSheet := "payments"
	issuesSheet := "issues"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	for _, sheet := range []string{hosesSheet, tanksSheet, salesSheet, paymentsSheet, issuesSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}

	summary := [][]any{
		{"Shift Closure"},
		{},
		{"Closure", record.ID},
		{"Point of sale", record.PointOfSaleID},
		{"Start", record.StartTime.Format(time.RFC3339)},
		{"Finish", record.FinishTime.Format(time.RFC3339)},
		{"Status", string(out.Status)},
		{"Operator", record.Metadata.Actor},
		{"Liters", out.Totals.Liters},
		{"Gallons", out.Totals.Gallons},
		{"Fuel value", out.Totals.FuelValue.InexactFloat64()},
		{"Product value", out.Totals.ProductValue.InexactFloat64()},
		{"Total value", out.Totals.Value.InexactFloat64()},
		{"Transactions", out.Totals.TransactionCount},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return nil, err
	}

	hoses := [][]any{{"Dispenser", "Hose", "Product", "Previous", "Current", "Unit", "Liters", "Gallons", "Price/L", "Value", "Outcome", "Error"}}
	for _, dispenser := range out.Dispensers {
		for _, hose := range dispenser.Hoses {
			hoses = append(hoses, []any{
				dispenser.DispenserNumber, hose.HoseNumber, hose.ProductCode,
				hose.PreviousReading, hose.CurrentReading, hose.Unit,
				hose.SoldLiters, hose.SoldGallons, hose.PricePerLiter.InexactFloat64(),
				hose.Value.InexactFloat64(), hose.Outcome, hose.Error,
			})
		}
	}
	if err := writeRows(f, hosesSheet, hoses); err != nil {
		return nil, err
	}

	tanks := [][]any{{"Tank", "Product", "Height (cm)", "Measured (L)", "Level (L)", "Book (L)", "Difference (L)", "Capacity (L)", "Fill %", "Outcome", "Error"}}
	for _, tank := range out.Tanks {
		tanks = append(tanks, []any{
			tank.TankID, tank.ProductCode, tank.FluidHeightCM, tank.MeasuredLiters, tank.LevelLiters,
			tank.BookLiters, tank.DifferenceLiters, tank.CapacityLiters, tank.FillPercent, tank.Outcome, tank.Error,
		})
	}
	if err := writeRows(f, tanksSheet, tanks); err != nil {
		return nil, err
	}

	sales := [][]any{{"Product", "Quantity", "Unit", "Unit price", "Declared total", "Value", "Remaining stock", "Outcome", "Error"}}
	for _, sale := range out.ProductSales {
		sales = append(sales, []any{
			sale.ProductCode, sale.Quantity, sale.Unit, sale.UnitPrice.InexactFloat64(),
			sale.DeclaredLineTotal.InexactFloat64(), sale.Value.InexactFloat64(), sale.RemainingStock,
			sale.Outcome, sale.Error,
		})
	}
	if err := writeRows(f, salesSheet, sales); err != nil {
		return nil, err
	}

	payments := [][]any{{"Method", "Bucket", "Amount", "Percentage"}}
	if out.Payments != nil {
		for _, method := range out.Payments.Methods {
			payments = append(payments, []any{method.Declared, string(method.Bucket), method.Amount.InexactFloat64(), method.Percentage.InexactFloat64()})
		}
		payments = append(payments,
			[]any{},
			[]any{"Declared total", "", out.Payments.DeclaredTotal.InexactFloat64()},
			[]any{"Calculated total", "", out.Payments.CalculatedTotal.InexactFloat64()},
			[]any{"Variance", "", out.Payments.Variance.InexactFloat64()},
		)
	}
	if err := writeRows(f, paymentsSheet, payments); err != nil {
		return nil, err
	}

	issues := [][]any{{"Stage", "Kind", "Item", "Message"}}
	for _, issue := range out.Issues {
		issues = append(issues, []any{string(issue.Stage), string(issue.Kind), issue.Item, issue.Message})
	}
	if err := writeRows(f, issuesSheet, issues); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
