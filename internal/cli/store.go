package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/applicants/internal/config"
	"github.com/JonMunkholm/applicants/internal/core"
	"github.com/JonMunkholm/applicants/internal/metrics"
	"github.com/JonMunkholm/applicants/internal/store/memory"
	"github.com/JonMunkholm/applicants/internal/store/postgres"
	"github.com/JonMunkholm/applicants/internal/store/sqlite"
)

// closeableStore is a store backend that owns a connection.
type closeableStore interface {
	core.Store
	Close() error
}

// openStore opens the backend selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (closeableStore, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil

	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		slog.Debug("opened sqlite store", "path", cfg.URL)
		return s, nil

	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgres.PoolConfig{
			URL:             cfg.URL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("connected to database", "name", postgres.DatabaseName(cfg.URL))
		return s, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// newService builds an ingestion service from cfg. Mode overrides the
// configured default when set.
func newService(cfg *config.Config, store core.Store, m *metrics.Metrics, mode core.Mode) (*core.Service, error) {
	if mode == "" {
		var ok bool
		if mode, ok = core.ParseMode(cfg.Ingest.Mode); !ok {
			return nil, fmt.Errorf("unknown mode %q", cfg.Ingest.Mode)
		}
	}

	classifier, err := core.LoadClassifier(cfg.Ingest.RulesFile)
	if err != nil {
		return nil, err
	}

	return core.NewService(store, core.Options{
		Mode:          mode,
		MinMergeCells: cfg.Ingest.MinMergeCells,
		MaxRedispatch: cfg.Ingest.MaxRedispatch,
		MaxFileSize:   cfg.Ingest.MaxFileSize,
		Timeout:       cfg.Ingest.Timeout,
		Classifier:    classifier,
		Limiter:       core.NewIngestLimiter(cfg.Ingest.MaxConcurrent, cfg.Ingest.MaxWaitTime),
		Metrics:       m,
	}), nil
}
