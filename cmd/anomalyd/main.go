// Command anomalyd serves anomaly detection over CSV files of operational
// metrics.
//
// For every request the service:
//  1. Loads the CSV file named by the csv_path query parameter
//  2. Resolves the CPU, memory and latency columns (fuzzy or exact mode)
//  3. Derives the interaction features and scales them
//  4. Scores each row with an isolation forest or a remote (BYOM) model
//  5. Returns every row with its Anomaly_Score and Anomaly_Status
//
// The service listens on 0.0.0.0:5000 (configurable) and provides:
//   - GET /                           - Usage note
//   - GET /predict?csv_path=<path>    - Score a CSV file
//   - GET /reports/latest?csv_path=   - Latest run report (when storage is enabled)
//   - GET /healthz                    - Health check endpoint
//   - GET /metrics                    - Prometheus metrics endpoint
//
// Usage:
//
//	anomalyd \
//	  -mode=fuzzy \
//	  -scaler-file=models/scaler.json \
//	  -scorer-file=models/forest.json
//
// Environment variables:
//
//	LISTEN          - HTTP listen address (default: 0.0.0.0:5000)
//	MODE            - Column resolution mode: fuzzy, exact (default: fuzzy)
//	COLUMNS_FILE    - YAML file overriding column patterns
//	SCALER          - Scaler: standard, minmax, identity (default: standard)
//	SCALER_FILE     - Scaler JSON file
//	SCORER          - Scorer: iforest, byom (default: iforest)
//	SCORER_FILE     - Isolation forest JSON file
//	BYOM_URL        - BYOM scoring service URL
//	STORAGE         - Run report storage: none, memory, redis (default: none)
//	REDIS_ADDR      - Redis server address (default: localhost:6379)
//	REPORT_TTL      - Run report TTL (default: 30m)
//	REPORT_QUANTILE - Score quantile kept in run reports (default: p5)
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/HatiCode/anomalyd/cmd/anomalyd/config"
	"github.com/HatiCode/anomalyd/cmd/anomalyd/logger"
	"github.com/HatiCode/anomalyd/cmd/anomalyd/metrics"
	"github.com/HatiCode/anomalyd/cmd/anomalyd/models"
	"github.com/HatiCode/anomalyd/cmd/anomalyd/router"
	"github.com/HatiCode/anomalyd/cmd/anomalyd/store"
	"github.com/HatiCode/anomalyd/pkg/adapters"
	"github.com/HatiCode/anomalyd/pkg/detect"
	"github.com/HatiCode/anomalyd/pkg/features"
	"github.com/HatiCode/anomalyd/pkg/httpx"
	"github.com/HatiCode/anomalyd/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logger.New(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("anomalyd failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	mode, err := features.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	schema, err := features.LoadSchemaFile(cfg.ColumnsFile, mode)
	if err != nil {
		return err
	}

	scaler, err := models.NewScaler(cfg, logger)
	if err != nil {
		return fmt.Errorf("load scaler: %w", err)
	}

	scorer, err := models.NewScorer(cfg, logger)
	if err != nil {
		return fmt.Errorf("load scorer: %w", err)
	}

	logger.Info("starting anomalyd",
		"version", version,
		"mode", mode,
		"scaler", scaler.Name(),
		"scorer", scorer.Name(),
	)

	backend, err := store.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	quantile, err := detect.ParseQuantileLevel(cfg.ReportQuantile)
	if err != nil {
		return err
	}

	m := metrics.New(nil, string(mode), scorer.Name())

	detector := detect.New(
		adapters.NewCSVAdapter(),
		schema,
		scaler,
		scorer,
		backend.Store,
		logger,
		m,
	).WithReportQuantile(quantile)

	handler := router.SetupRoutes(detector, backend.Store, backend.Check, m, logger)
	httpServer := httpx.NewServer(cfg.Listen, handler, logger)

	if cfg.TLS.Enabled {
		tlsConfig, err := tls.NewServerTLSConfig(cfg.TLS)
		if err != nil {
			return fmt.Errorf("configure server TLS: %w", err)
		}
		httpServer.SetTLSConfig(tlsConfig)
		logger.Info("TLS enabled", "mtls", cfg.TLS.Mutual())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if cfg.TLS.Enabled {
			return httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		}
		return httpServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return httpServer.Stop(cfg.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
