package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fuel-backoffice/internal/audit"
	"fuel-backoffice/internal/auth"
	closureapp "fuel-backoffice/internal/closure/application"
	closure "fuel-backoffice/internal/closure/domain"
	closurememory "fuel-backoffice/internal/closure/infrastructure/memory"
	closurepostgres "fuel-backoffice/internal/closure/infrastructure/postgres"
	closureinterfaces "fuel-backoffice/internal/closure/interfaces"
	"fuel-backoffice/internal/config"
	gaugingapp "fuel-backoffice/internal/gauging/application"
	gauging "fuel-backoffice/internal/gauging/domain"
	calibrationmemory "fuel-backoffice/internal/gauging/infrastructure/memory"
	calibrationpostgres "fuel-backoffice/internal/gauging/infrastructure/postgres"
	gauginginterfaces "fuel-backoffice/internal/gauging/interfaces"
	masterdataapp "fuel-backoffice/internal/masterdata/application"
	masterdata "fuel-backoffice/internal/masterdata/domain"
	masterdatamemory "fuel-backoffice/internal/masterdata/infrastructure/memory"
	masterdatapostgres "fuel-backoffice/internal/masterdata/infrastructure/postgres"
	"fuel-backoffice/internal/observability/logging"
	"fuel-backoffice/internal/observability/metrics"
	"fuel-backoffice/internal/platform/database"
	"fuel-backoffice/internal/reportstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	repos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repos.close()

	metrics.Init(repos.db, logger)

	if cfg.CatalogFile != "" {
		if err := seedCatalog(ctx, cfg.CatalogFile, repos, logger); err != nil {
			return err
		}
	}

	tolerances, err := cfg.Closure.Tolerances()
	if err != nil {
		return err
	}

	gaugingService, err := gaugingapp.NewGaugingService(repos.calibration, repos.tanks,
		gaugingapp.WithLogger(logger.Named("gauging")),
	)
	if err != nil {
		return fmt.Errorf("gauging service: %w", err)
	}
	closureService, err := closureapp.NewShiftClosureService(
		repos.pointsOfSale,
		repos.products,
		repos.tanks,
		repos.dispensers,
		gaugingService,
		repos.closures,
		closureapp.WithObserver(closureinterfaces.NewLoggingObserver(logger), closureinterfaces.MetricsObserver{}),
		closureapp.WithPaymentTolerance(tolerances.Payment),
		closureapp.WithLineTotalTolerance(tolerances.LineTotal),
		closureapp.WithLineTotalErrorThreshold(tolerances.LineTotalErrorAbove),
		closureapp.WithLookupConcurrency(cfg.Closure.LookupConcurrency),
		closureapp.WithLogger(logger.Named("closure")),
	)
	if err != nil {
		return fmt.Errorf("closure service: %w", err)
	}

	checker := auth.NewPointOfSaleChecker(repos.pointsOfSale)

	closureOpts := []closureinterfaces.HandlerOption{closureinterfaces.WithHandlerLogger(logger)}
	reports, prefix, err := openReportStore(ctx, cfg.Reports)
	if err != nil {
		return err
	}
	if reports != nil {
		closureOpts = append(closureOpts, closureinterfaces.WithReportStore(reports, prefix))
		if repos.exports != nil {
			closureOpts = append(closureOpts, closureinterfaces.WithExportRecorder(repos.exports))
		}
	}
	closureHandler, err := closureinterfaces.NewHandler(closureService, checker, repos.audit, closureOpts...)
	if err != nil {
		return fmt.Errorf("closure handler: %w", err)
	}
	tankHandler, err := gauginginterfaces.NewHandler(gaugingService, repos.tanks, checker, repos.audit,
		gauginginterfaces.WithDefaultIncrement(cfg.Gauging.DefaultIncrementCM),
		gauginginterfaces.WithHandlerLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("tank handler: %w", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/shift-closures", closureHandler)
	mux.Handle("/api/v1/shift-closures/", closureHandler)
	mux.Handle("/api/v1/tanks/", tankHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if repos.db != nil {
			if err := repos.db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           logging.Middleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("storage", cfg.StorageDriver))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type repositories struct {
	db           *sql.DB
	pointsOfSale masterdata.PointOfSaleRepository
	products     masterdata.ProductRepository
	tanks        masterdata.TankRepository
	dispensers   masterdata.DispenserRepository
	calibration  gauging.Repository
	closures     closure.Store
	exports      closureinterfaces.ExportRecorder
	audit        audit.Logger
}

func (r *repositories) close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

func openRepositories(ctx context.Context, cfg config.Config, logger *zap.Logger) (*repositories, error) {
	if cfg.StorageDriver == config.DriverMemory {
		store := masterdatamemory.NewStore()
		closures, err := closurememory.NewClosureStore(store)
		if err != nil {
			return nil, err
		}
		return &repositories{
			pointsOfSale: store,
			products:     store,
			tanks:        store,
			dispensers:   store,
			calibration:  calibrationmemory.NewCalibrationRepository(),
			closures:     closures,
			audit:        audit.NewZapLogger(logger),
		}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Database.URL, cfg.Database.MigrationsPath, logger); err != nil {
			return nil, err
		}
	}
	db, err := database.Open(ctx, cfg.Database.URL, database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	closures := closurepostgres.NewClosureStore(db)
	return &repositories{
		db:           db,
		pointsOfSale: masterdatapostgres.NewPointOfSaleRepository(db),
		products:     masterdatapostgres.NewProductRepository(db),
		tanks:        masterdatapostgres.NewTankRepository(db),
		dispensers:   masterdatapostgres.NewDispenserRepository(db),
		calibration:  calibrationpostgres.NewCalibrationRepository(db),
		closures:     closures,
		exports:      closures,
		audit:        audit.NewRepository(db),
	}, nil
}

func seedCatalog(ctx context.Context, path string, repos *repositories, logger *zap.Logger) error {
	catalog, err := masterdataapp.LoadCatalogFile(path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	service, err := masterdataapp.NewCatalogService(repos.pointsOfSale, repos.products, repos.tanks, repos.dispensers)
	if err != nil {
		return err
	}
	if err := service.Seed(ctx, catalog); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info("catalog seeded",
		zap.String("path", path),
		zap.Int("points_of_sale", len(catalog.PointsOfSale)),
		zap.Int("products", len(catalog.Products)),
		zap.Int("tanks", len(catalog.Tanks)),
		zap.Int("dispensers", len(catalog.Dispensers)),
	)
	return nil
}

func openReportStore(ctx context.Context, cfg config.ReportConfig) (reportstore.Store, string, error) {
	switch cfg.Store {
	case config.ReportStoreFile:
		store, err := reportstore.NewFileStore(cfg.Directory)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	case config.ReportStoreS3:
		store, err := reportstore.NewS3Store(ctx, reportstore.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, "", err
		}
		return store, cfg.S3.Prefix, nil
	default:
		return nil, "", nil
	}
}
