// Package config loads runtime settings from the environment with an
// optional YAML overlay named by FUEL_CONFIG.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	ReportStoreNone = "none"
	ReportStoreFile = "file"
	ReportStoreS3   = "s3"
)

// Config is the full runtime configuration.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	StorageDriver   string        `yaml:"storage_driver"`
	CatalogFile     string        `yaml:"catalog_file"`
	JWTSecret       string        `yaml:"jwt_secret"`

	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Closure  ClosureConfig  `yaml:"closure"`
	Gauging  GaugingConfig  `yaml:"gauging"`
	Reports  ReportConfig   `yaml:"reports"`
}

// DatabaseConfig configures Postgres.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MigrationsPath  string        `yaml:"migrations_path"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ClosureConfig holds the reconciliation tolerances. Money values are
// decimal strings.
type ClosureConfig struct {
	PaymentTolerance        string `yaml:"payment_tolerance"`
	LineTotalTolerance      string `yaml:"line_total_tolerance"`
	LineTotalErrorThreshold string `yaml:"line_total_error_threshold"`
	LookupConcurrency       int    `yaml:"lookup_concurrency"`
}

// GaugingConfig holds calibration defaults.
type GaugingConfig struct {
	DefaultIncrementCM float64 `yaml:"default_increment_cm"`
}

// ReportConfig selects where rendered closure reports are archived.
type ReportConfig struct {
	Store     string   `yaml:"store"`
	Directory string   `yaml:"directory"`
	S3        S3Config `yaml:"s3"`
}

// S3Config configures the S3 report archive.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Tolerances are the parsed closure money settings.
type Tolerances struct {
	Payment             decimal.Decimal
	LineTotal           decimal.Decimal
	LineTotalErrorAbove decimal.Decimal
}

// Load reads the environment, applies the YAML overlay and validates.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		StorageDriver:   strings.ToLower(getenvDefault("STORAGE_DRIVER", DriverPostgres)),
		CatalogFile:     os.Getenv("FUEL_CATALOG_FILE"),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		Database: DatabaseConfig{
			URL:             getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
			MigrationsPath:  getenvDefault("MIGRATIONS_PATH", "migrations"),
			AutoMigrate:     getenvBool("DB_AUTO_MIGRATE", true),
			MaxOpenConns:    getenvIntDefault("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getenvIntDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getenvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getenvDefault("LOG_LEVEL", "info"),
			Format: getenvDefault("LOG_FORMAT", "json"),
		},
		Closure: ClosureConfig{
			PaymentTolerance:        getenvDefault("PAYMENT_TOLERANCE", "0.01"),
			LineTotalTolerance:      getenvDefault("LINE_TOTAL_TOLERANCE", "0.01"),
			LineTotalErrorThreshold: getenvDefault("LINE_TOTAL_ERROR_THRESHOLD", "0"),
			LookupConcurrency:       getenvIntDefault("CLOSURE_LOOKUP_CONCURRENCY", 8),
		},
		Gauging: GaugingConfig{
			DefaultIncrementCM: getenvFloatDefault("CALIBRATION_INCREMENT_CM", 1),
		},
		Reports: ReportConfig{
			Store:     strings.ToLower(getenvDefault("REPORT_STORE", ReportStoreNone)),
			Directory: getenvDefault("REPORT_DIR", "var/reports/closures"),
			S3: S3Config{
				Bucket:          os.Getenv("REPORT_S3_BUCKET"),
				Region:          getenvDefault("REPORT_S3_REGION", "us-east-1"),
				Endpoint:        os.Getenv("REPORT_S3_ENDPOINT"),
				Prefix:          getenvDefault("REPORT_S3_PREFIX", "closures"),
				AccessKeyID:     os.Getenv("REPORT_S3_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("REPORT_S3_SECRET_ACCESS_KEY"),
			},
		},
	}

	if path := os.Getenv("FUEL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required values and enumerations.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("config: DATABASE_URL or PG_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown storage driver %q", c.StorageDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("config: AUTH_JWT_SECRET is required"))
	}
	switch c.Reports.Store {
	case ReportStoreNone, "":
	case ReportStoreFile:
		if c.Reports.Directory == "" {
			errs = append(errs, errors.New("config: REPORT_DIR is required for the file report store"))
		}
	case ReportStoreS3:
		if c.Reports.S3.Bucket == "" {
			errs = append(errs, errors.New("config: REPORT_S3_BUCKET is required for the s3 report store"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown report store %q", c.Reports.Store))
	}
	if _, err := c.Closure.Tolerances(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Tolerances parses the closure money settings.
func (c ClosureConfig) Tolerances() (Tolerances, error) {
	var out Tolerances
	var err error
	if out.Payment, err = parseMoney("payment_tolerance", c.PaymentTolerance); err != nil {
		return out, err
	}
	if out.LineTotal, err = parseMoney("line_total_tolerance", c.LineTotalTolerance); err != nil {
		return out, err
	}
	if out.LineTotalErrorAbove, err = parseMoney("line_total_error_threshold", c.LineTotalErrorThreshold); err != nil {
		return out, err
	}
	return out, nil
}

func parseMoney(name, value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s: %w", name, err)
	}
	if parsed.IsNegative() {
		return decimal.Zero, fmt.Errorf("config: %s must not be negative", name)
	}
	return parsed, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
