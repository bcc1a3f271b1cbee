package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	closure "fuel-backoffice/internal/closure/domain"
)

func TestParseWindowIncludesLastDay(t *testing.T) {
	from, to, err := parseWindow("2026-03-01", "2026-03-02")
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}
	if !to.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)) || !from.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window %s - %s", from, to)
	}
	if _, _, err := parseWindow("2026-03-05", "2026-03-01"); err == nil {
		t.Fatalf("expected error for inverted window")
	}
}

func TestWriteClosuresFiltersWindow(t *testing.T) {
	day := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	records := []closure.ClosureRecord{
		{ID: "c-1", PointOfSaleID: "pos-1", StartTime: day, Output: closure.OutputSnapshot{
			Status: closure.StatusSucceeded,
			Totals: closure.Totals{Liters: 189.27, Value: decimal.RequireFromString("189.25")},
			Payments: &closure.Reconciliation{
				DeclaredTotal: decimal.RequireFromString("189.25"),
				Methods: []closure.MethodBreakdown{{
					Declared: "efectivo", Method: closure.MethodCash, Bucket: closure.BucketCash,
					Amount: decimal.RequireFromString("189.25"), Percentage: decimal.NewFromInt(100),
				}},
			},
			Issues: []closure.Issue{{Kind: closure.KindWarning, Message: "no sale"}},
		}},
		{ID: "c-0", PointOfSaleID: "pos-1", StartTime: day.AddDate(0, 0, -5)},
	}
	from, to, err := parseWindow("2026-03-01", "2026-03-02")
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}
	kept := inWindow(records, from, to)
	if len(kept) != 1 || kept[0].ID != "c-1" {
		t.Fatalf("unexpected records in window %+v", kept)
	}

	dir := t.TempDir()
	if err := writeClosures(dir, kept); err != nil {
		t.Fatalf("write closures: %v", err)
	}
	if err := writePayments(dir, kept); err != nil {
		t.Fatalf("write payments: %v", err)
	}
	rows := readCSV(t, filepath.Join(dir, "closures.csv"))
	if len(rows) != 2 || rows[1][0] != "c-1" || rows[1][10] != "189.25" || rows[1][14] != "1" {
		t.Fatalf("unexpected closures.csv %v", rows)
	}
	payments := readCSV(t, filepath.Join(dir, "payments.csv"))
	if len(payments) != 2 || payments[1][3] != "cash" {
		t.Fatalf("unexpected payments.csv %v", payments)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}
