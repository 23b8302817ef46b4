package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/chinchliff/oti"
	"github.com/chinchliff/oti/pkg/alert"
	"github.com/chinchliff/oti/pkg/config"
	"github.com/chinchliff/oti/pkg/driver"
	otiLogger "github.com/chinchliff/oti/pkg/logger"
	"github.com/chinchliff/oti/pkg/metrics"
	"github.com/chinchliff/oti/pkg/telemetry"
)

// app holds everything a command needs to run searches.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	driver    driver.GraphDriver
	client    *oti.Client
	metrics   *metrics.Metrics
	telemetry *telemetry.ParquetHandler
}

// newApp opens the configured driver and wires a search client over it.
// source tags the requests the client runs (server, cli).
func newApp(ctx context.Context, cfg *config.Config, stderr io.Writer, source string) (*app, error) {
	logger, tel := newLogger(cfg, stderr)

	graphDriver, err := openDriver(ctx, cfg, logger)
	if err != nil {
		if tel != nil {
			_ = tel.Close()
		}
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
	}

	client, err := oti.NewDriverClient(graphDriver, &oti.Config{
		CircuitBreaker: cfg.CircuitBreaker,
		Metrics:        m,
		Alerter:        alert.New(cfg.Alert),
		RequestSource:  source,
	}, logger)
	if err != nil {
		_ = graphDriver.Close()
		if tel != nil {
			_ = tel.Close()
		}
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		driver:    graphDriver,
		client:    client,
		metrics:   m,
		telemetry: tel,
	}, nil
}

// Close closes the client, which owns the driver, and flushes telemetry.
func (a *app) Close() error {
	var errs []error
	if err := a.client.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.telemetry != nil {
		if err := a.telemetry.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newLogger builds the console logger and, when a telemetry path is set,
// records warnings and errors to parquet as well. A telemetry directory that
// cannot be created only disables recording.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, *telemetry.ParquetHandler) {
	logger := otiLogger.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if cfg.Telemetry.ParquetPath == "" {
		return logger, nil
	}

	parquetHandler, err := telemetry.NewParquetHandler(logger.Handler(), cfg.Telemetry.ParquetPath)
	if err != nil {
		logger.Warn("error tracking disabled", "error", err)
		return logger, nil
	}
	return slog.New(parquetHandler), parquetHandler
}

// openDriver connects to the configured backend.
func openDriver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driver.GraphDriver, error) {
	switch cfg.Database.Driver {
	case "neo4j":
		d, err := driver.NewNeo4jDriver(ctx, cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
		}
		logger.Info("connected to neo4j", "uri", cfg.Database.URI, "database", cfg.Database.Database)
		return d, nil
	case "badger":
		d, err := driver.NewBadgerDriver(cfg.Database.Path, cfg.Database.InMemory, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create badger driver: %w", err)
		}
		logger.Debug("opened badger store", "path", cfg.Database.Path, "in_memory", cfg.Database.InMemory)
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}
