// Package main provides the entry point of the emission calculation service
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/ecoestudiante-calc/app/handlers"
	"github.com/amirphl/ecoestudiante-calc/app/middleware"
	"github.com/amirphl/ecoestudiante-calc/app/router"
	"github.com/amirphl/ecoestudiante-calc/app/scheduler"
	"github.com/amirphl/ecoestudiante-calc/app/services"
	businessflow "github.com/amirphl/ecoestudiante-calc/business_flow"
	"github.com/amirphl/ecoestudiante-calc/config"
	_ "github.com/amirphl/ecoestudiante-calc/docs"
	"github.com/amirphl/ecoestudiante-calc/migrations"
	"github.com/amirphl/ecoestudiante-calc/repository"
	_ "github.com/lib/pq" // PostgreSQL driver for database/sql migrations
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	logger    zerolog.Logger
	stopFuncs []func()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ecoestudiante-calc",
		Short:        "Emission calculation service",
		Long:         "Computes kgCO2e for electricity and transport records with idempotent persistence.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()
			return serve(cfg, logger)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			return migrate(ctx, cfg.Database, logger)
		},
	}
}

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert factor versions from a YAML file (existing hashes are skipped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closer, err := bootstrap()
			if err != nil {
				return err
			}
			defer closer.Close()

			if file == "" {
				file = cfg.Calc.SeedFile
			}
			if file == "" {
				return fmt.Errorf("seed file is required (--file or CALC_SEED_FILE)")
			}

			db, err := initializeDatabase(cfg.Database, logger)
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			catalogRepo := repository.NewFactorCatalogRepository(db)
			flow := businessflow.NewFactorFlow(catalogRepo, businessflow.NewFactorResolver(catalogRepo), logger)
			return seedCatalog(cmd.Context(), flow, file, logger)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the factor catalog YAML file")
	return cmd
}

// bootstrap loads configuration and the process logger.
func bootstrap() (*config.ProductionConfig, zerolog.Logger, io.Closer, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closer, err := config.InitLogger(cfg.Logging)
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = logger.With().
		Str("service", "ecoestudiante-calc").
		Str("version", cfg.Deployment.Version).
		Logger()
	return cfg, logger, closer, nil
}

func serve(cfg *config.ProductionConfig, logger zerolog.Logger) error {
	app, err := initializeApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	app.router.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		errCh <- app.router.Start(address)
	}()

	select {
	case err := <-errCh:
		app.shutdown()
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	err = app.router.GetApp().ShutdownWithContext(shutdownCtx)
	app.shutdown()
	if err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}

// shutdown stops background workers in reverse start order
func (a *Application) shutdown() {
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}
	a.stopFuncs = nil
}

// initializeDatabase opens the configured store with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger zerolog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(
			stdlog.New(logger.With().Str("component", "gorm").Logger(), "", 0),
			gormlogger.Config{
				SlowThreshold:             cfg.SlowQueryTime,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(fmt.Sprintf("file:%s?_foreign_keys=1&_busy_timeout=5000", cfg.SQLitePath))
	default:
		dialector = postgres.Open(cfg.PostgresDSN())
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("driver", cfg.Driver).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("database connection established")
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// migrate applies the embedded SQL files on Postgres, or auto-migrates the SQLite store.
func migrate(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) error {
	if cfg.Driver == config.DriverSQLite {
		db, err := initializeDatabase(cfg, logger)
		if err != nil {
			return err
		}
		defer closeDatabase(db)
		if err := migrations.AutoMigrate(db.WithContext(ctx)); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("sqlite schema is up to date")
		return nil
	}

	sqlDB, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer sqlDB.Close()

	applied, err := migrations.Apply(ctx, sqlDB)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Info().Msg("schema is up to date")
		return nil
	}
	logger.Info().Strs("applied", applied).Msg("migrations applied")
	return nil
}

// initializeCache initializes the cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig, logger zerolog.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("addr", opt.Addr).Int("db", cfg.RedisDB).Msg("redis connection established")
	return rc, nil
}

func seedCatalog(ctx context.Context, flow businessflow.FactorFlow, path string, logger zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	result, err := flow.SeedCatalog(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to seed factor catalog from %s: %w", path, err)
	}
	logger.Info().
		Str("file", path).
		Strs("inserted", result.Inserted).
		Strs("skipped", result.Skipped).
		Msg("factor catalog seeded")
	return nil
}

// initializeApplication wires storage, flows, handlers and the router
func initializeApplication(cfg *config.ProductionConfig, logger zerolog.Logger) (*Application, error) {
	app := &Application{config: cfg, logger: logger}

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	app.stopFuncs = append(app.stopFuncs, func() { closeDatabase(db) })

	if cfg.Database.Driver == config.DriverSQLite {
		if err := migrations.AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		app.stopFuncs = append(app.stopFuncs, func() { _ = rc.Close() })
		monitor := scheduler.NewCacheHealthMonitor(rc, cfg.Cache.HealthInterval, logger)
		app.stopFuncs = append(app.stopFuncs, monitor.Start(context.Background()))
	}

	// Repositories
	catalogRepo := repository.NewFactorCatalogRepository(db)
	calcRepo := repository.NewCalculationRepository(db)
	auditRepo := repository.NewCalculationAuditRepository(db)

	var catalog repository.FactorCatalog = catalogRepo
	if cfg.Cache.Enabled {
		catalog = businessflow.NewCachedFactorCatalog(catalogRepo, rc, cfg.Cache, logger)
	}
	resolver := businessflow.NewFactorResolver(catalog)

	// Flows
	calcFlow := businessflow.NewCalculationFlow(calcRepo, auditRepo, resolver, db, cfg.Calc, logger)
	factorFlow := businessflow.NewFactorFlow(catalogRepo, resolver, logger)

	if cfg.Calc.SeedFile != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := seedCatalog(ctx, factorFlow, cfg.Calc.SeedFile, logger)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.Algorithm,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Handlers
	calcHandler := handlers.NewCalcHandler(calcFlow, cfg.Calc.RequestTimeout)
	factorHandler := handlers.NewFactorHandler(factorFlow, cfg.Calc.RequestTimeout)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	probe := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	app.router = router.NewFiberRouter(cfg, logger, calcHandler, factorHandler, authMiddleware, probe)
	return app, nil
}
