package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadMemoryDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("FUEL_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.StorageDriver != DriverMemory {
		t.Fatalf("unexpected config %+v", cfg)
	}
	tolerances, err := cfg.Closure.Tolerances()
	if err != nil {
		t.Fatalf("tolerances: %v", err)
	}
	if !tolerances.Payment.Equal(decimal.RequireFromString("0.01")) || !tolerances.LineTotalErrorAbove.IsZero() {
		t.Fatalf("unexpected tolerances %+v", tolerances)
	}
}

func TestLoadRequiresDatabaseForPostgres(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")
	t.Setenv("FUEL_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"DATABASE_URL", "AUTH_JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestYAMLOverlayWinsOverEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fuel.yaml")
	overlay := `
storage_driver: memory
jwt_secret: from-file
shutdown_timeout: 3s
closure:
  payment_tolerance: "0.05"
  line_total_error_threshold: "2.50"
reports:
  store: s3
  s3:
    bucket: closures
`
	if err := os.WriteFile(path, []byte(overlay), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("FUEL_CONFIG", path)
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != DriverMemory || cfg.JWTSecret != "from-file" || cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("overlay not applied: %+v", cfg)
	}
	if cfg.Reports.Store != ReportStoreS3 || cfg.Reports.S3.Bucket != "closures" || cfg.Reports.S3.Prefix != "closures" {
		t.Fatalf("unexpected report config %+v", cfg.Reports)
	}
	tolerances, _ := cfg.Closure.Tolerances()
	if !tolerances.LineTotalErrorAbove.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unexpected threshold %s", tolerances.LineTotalErrorAbove)
	}
}

func TestValidateRejectsNegativeTolerance(t *testing.T) {
	cfg := Config{StorageDriver: DriverMemory, JWTSecret: "s", Closure: ClosureConfig{PaymentTolerance: "-1"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for negative tolerance")
	}
}
