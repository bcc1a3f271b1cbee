// Command reconcile exports committed shift closures of one point of sale to
// CSV files for offline reconciliation against the till and the bank.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	closure "fuel-backoffice/internal/closure/domain"
	closurepostgres "fuel-backoffice/internal/closure/infrastructure/postgres"
	"fuel-backoffice/internal/platform/database"
)

const dateLayout = "2006-01-02"

type config struct {
	dbURL         string
	pointOfSaleID string
	from          string
	to            string
	limit         int
	outDir        string
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	from, to, err := parseWindow(cfg.from, cfg.to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.dbURL, database.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	records, err := closurepostgres.NewClosureStore(db).ListRecords(ctx, cfg.pointOfSaleID, cfg.limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load closures:", err)
		os.Exit(2)
	}
	records = inWindow(records, from, to)

	if err := writeClosures(cfg.outDir, records); err != nil {
		fmt.Fprintln(os.Stderr, "write closures:", err)
		os.Exit(2)
	}
	if err := writeHoses(cfg.outDir, records); err != nil {
		fmt.Fprintln(os.Stderr, "write hoses:", err)
		os.Exit(2)
	}
	if err := writePayments(cfg.outDir, records); err != nil {
		fmt.Fprintln(os.Stderr, "write payments:", err)
		os.Exit(2)
	}

	fmt.Printf("%d closures written to %s\n", len(records), cfg.outDir)
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.pointOfSaleID, "pos", "", "point of sale id")
	flag.StringVar(&cfg.from, "from", "", "first shift day, YYYY-MM-DD (optional)")
	flag.StringVar(&cfg.to, "to", "", "last shift day, YYYY-MM-DD (optional)")
	flag.IntVar(&cfg.limit, "limit", 500, "maximum closures to load")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if cfg.pointOfSaleID == "" {
		return cfg, errors.New("missing --pos")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseWindow(fromValue, toValue string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromValue != "" {
		if from, err = time.Parse(dateLayout, fromValue); err != nil {
			return from, to, fmt.Errorf("invalid --from %q: %w", fromValue, err)
		}
	}
	if toValue != "" {
		if to, err = time.Parse(dateLayout, toValue); err != nil {
			return from, to, fmt.Errorf("invalid --to %q: %w", toValue, err)
		}
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return from, to, errors.New("--to must not be before --from")
	}
	return from, to, nil
}

func inWindow(records []closure.ClosureRecord, from, to time.Time) []closure.ClosureRecord {
	out := records[:0]
	for _, record := range records {
		if !from.IsZero() && record.StartTime.Before(from) {
			continue
		}
		if !to.IsZero() && !record.StartTime.Before(to) {
			continue
		}
		out = append(out, record)
	}
	return out
}

func writeClosures(outDir string, records []closure.ClosureRecord) error {
	rows := [][]string{{
		"closure_id", "point_of_sale_id", "start_time", "finish_time", "status", "operator",
		"liters", "gallons", "fuel_value", "product_value", "total_value",
		"declared_total", "variance", "errors", "warnings", "processed_at",
	}}
	for _, record := range records {
		out := record.Output
		declared, variance := "", ""
		if out.Payments != nil {
			declared = out.Payments.DeclaredTotal.StringFixed(2)
			variance = out.Payments.Variance.StringFixed(2)
		}
		errs, warnings := closure.SplitIssues(out.Issues)
		rows = append(rows, []string{
			record.ID,
			record.PointOfSaleID,
			formatTime(record.StartTime),
			formatTime(record.FinishTime),
			string(out.Status),
			record.Metadata.Actor,
			formatFloat(out.Totals.Liters),
			formatFloat(out.Totals.Gallons),
			out.Totals.FuelValue.StringFixed(2),
			out.Totals.ProductValue.StringFixed(2),
			out.Totals.Value.StringFixed(2),
			declared,
			variance,
			strconv.Itoa(len(errs)),
			strconv.Itoa(len(warnings)),
			formatTime(record.Metadata.ProcessedAt),
		})
	}
	return writeCSV(filepath.Join(outDir, "closures.csv"), rows)
}

func writeHoses(outDir string, records []closure.ClosureRecord) error {
	rows := [][]string{{
		"closure_id", "dispenser", "hose", "product_code", "previous_reading", "current_reading",
		"unit", "sold_liters", "sold_gallons", "price_per_liter", "value", "outcome",
	}}
	for _, record := range records {
		for _, dispenser := range record.Output.Dispensers {
			for _, hose := range dispenser.Hoses {
				rows = append(rows, []string{
					record.ID,
					strconv.Itoa(dispenser.DispenserNumber),
					strconv.Itoa(hose.HoseNumber),
					hose.ProductCode,
					formatFloat(hose.PreviousReading),
					formatFloat(hose.CurrentReading),
					hose.Unit,
					formatFloat(hose.SoldLiters),
					formatFloat(hose.SoldGallons),
					hose.PricePerLiter.String(),
					hose.Value.StringFixed(2),
					hose.Outcome,
				})
			}
		}
	}
	return writeCSV(filepath.Join(outDir, "hoses.csv"), rows)
}

func writePayments(outDir string, records []closure.ClosureRecord) error {
	rows := [][]string{{"closure_id", "declared_method", "method", "bucket", "amount", "percentage"}}
	for _, record := range records {
		if record.Output.Payments == nil {
			continue
		}
		for _, method := range record.Output.Payments.Methods {
			rows = append(rows, []string{
				record.ID,
				method.Declared,
				string(method.Method),
				string(method.Bucket),
				method.Amount.StringFixed(2),
				method.Percentage.StringFixed(2),
			})
		}
	}
	return writeCSV(filepath.Join(outDir, "payments.csv"), rows)
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return file.Sync()
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
