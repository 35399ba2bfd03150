// Package store creates the run report store selected by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/HatiCode/anomalyd/cmd/anomalyd/config"
	"github.com/HatiCode/anomalyd/pkg/storage"
)

// Backend is the configured report store with its lifecycle hooks.
type Backend struct {
	// Store is nil when reports are disabled.
	Store storage.Store

	ping  func(ctx context.Context) error
	close func() error
}

// New creates the store named by cfg.Storage.
func New(cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.Storage {
	case "", "none":
		logger.Info("run reports disabled")
		return &Backend{}, nil

	case "memory":
		var mem *storage.MemoryStore
		if cfg.ReportTTL > 0 {
			mem = storage.NewMemoryStoreWithTTL(cfg.ReportTTL, 0)
		} else {
			mem = storage.NewMemoryStore()
		}
		logger.Info("using in-memory report store", "ttl", cfg.ReportTTL)
		return &Backend{
			Store: mem,
			close: func() error { mem.Stop(); return nil },
		}, nil

	case "redis":
		rs, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ReportTTL)
		if err != nil {
			return nil, err
		}
		logger.Info("using redis report store", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.ReportTTL)
		return &Backend{
			Store: rs,
			ping:  rs.Ping,
			close: rs.Close,
		}, nil

	default:
		return nil, fmt.Errorf("invalid storage %q", cfg.Storage)
	}
}

// Check reports whether the backend is reachable. Backends without a
// remote dependency are always healthy.
func (b *Backend) Check(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}
