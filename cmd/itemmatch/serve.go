package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/itemmatch/internal/config"
	dbRedis "github.com/kailas-cloud/itemmatch/internal/db/redis"
	"github.com/kailas-cloud/itemmatch/internal/domain"
	logpkg "github.com/kailas-cloud/itemmatch/internal/logger"
	"github.com/kailas-cloud/itemmatch/internal/metrics"
	budgetrepo "github.com/kailas-cloud/itemmatch/internal/repository/budget"
	chiTransport "github.com/kailas-cloud/itemmatch/internal/transport/chi"
	"github.com/kailas-cloud/itemmatch/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/itemmatch/internal/transport/openai"
	comparisonuc "github.com/kailas-cloud/itemmatch/internal/usecase/comparison"
	healthuc "github.com/kailas-cloud/itemmatch/internal/usecase/health"
	oracleuc "github.com/kailas-cloud/itemmatch/internal/usecase/oracle"
	usageuc "github.com/kailas-cloud/itemmatch/internal/usecase/usage"
	"github.com/kailas-cloud/itemmatch/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the comparison HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	env, cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting itemmatch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("oracle_provider", cfg.Oracle.Provider),
		zap.String("oracle_model", cfg.Oracle.Model),
		zap.Bool("store", cfg.Database.Enabled()),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterOracleMetrics()
	metrics.RegisterHTTPMetrics()

	ctx := context.Background()

	// Optional store: budget counters survive restarts, health pings it.
	var store *dbRedis.Store
	if cfg.Database.Enabled() {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))
	}

	base, model, err := buildProvider(ctx, cfg.Oracle, logger)
	if err != nil {
		return err
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var budget oracleuc.BudgetChecker
	if cfg.Oracle.Budget.Enabled() {
		tracker := oracleuc.NewBudgetTracker(
			cfg.Oracle.Provider,
			cfg.Oracle.Budget.DailyTokenLimit,
			cfg.Oracle.Budget.MonthlyTokenLimit,
			oracleuc.BudgetAction(cfg.Oracle.Budget.Action),
			logger,
		)
		if store != nil {
			tracker.WithStore(ctx, budgetrepo.New(store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
		}
		budget = tracker
	}

	var limiter *rate.Limiter
	if cfg.Oracle.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Oracle.RequestsPerSecond), cfg.Oracle.Burst)
	}

	oracle := oracleuc.NewInstrumentedOracle(base, cfg.Oracle.Provider, model, oracleuc.Options{
		Timeout: cfg.Oracle.Timeout(),
		Limiter: limiter,
		Budget:  budget,
	}, logger)
	logger.Info("Oracle ready",
		zap.String("provider", cfg.Oracle.Provider),
		zap.String("model", model),
		zap.Duration("timeout", cfg.Oracle.Timeout()),
		zap.Float64("rps", cfg.Oracle.RequestsPerSecond),
		zap.Bool("budget", budget != nil),
	)

	comparisonSvc := comparisonuc.New(oracle)

	var storePinger healthuc.StorePinger
	if store != nil {
		storePinger = store
	}
	var oracleChecker healthuc.OracleChecker
	if hc, ok := base.(domain.HealthChecker); ok {
		oracleChecker = hc
	}
	healthSvc := healthuc.New(oracleChecker, storePinger)

	// Usage service reads the same tracker the oracle charges.
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader)

	server := chiTransport.NewServer(comparisonSvc, usageSvc, healthSvc, chiTransport.Options{
		MaxItems:     cfg.Comparison.MaxItems,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// buildProvider creates the configured oracle transport and returns the effective model name.
func buildProvider(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (domain.Oracle, string, error) {
	switch cfg.Provider {
	case "openai":
		return openaiTransport.NewOracle(&openaiTransport.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			JSONMode: cfg.JSONMode,
			Logger:   logger,
		}), cfg.Model, nil
	case "gemini":
		o, err := gemini.NewOracle(ctx, &gemini.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			JSONMode: cfg.JSONMode,
			Logger:   logger,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create gemini oracle: %w", err)
		}
		model := cfg.Model
		if model == "" {
			model = gemini.DefaultModel
		}
		return o, model, nil
	default:
		return nil, "", fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}
