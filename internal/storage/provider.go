// Package storage selects the run-state persistence backend. Run
// persistence is best-effort artifact storage: failures are logged by
// the pipeline, never surfaced to users.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/config"
	"github.com/shopscout/shopscout/internal/pipeline"
	"github.com/shopscout/shopscout/internal/storage/gcs"
	"github.com/shopscout/shopscout/internal/storage/local"
	"github.com/shopscout/shopscout/internal/storage/postgres"
)

// NoopStore discards run state. Used when persistence is disabled.
type NoopStore struct{}

// SaveRun does nothing and always returns nil.
func (NoopStore) SaveRun(_ context.Context, _ *pipeline.RunState) error {
	return nil
}

// NewRunStore builds the configured store. The returned closer
// releases backend resources; it is non-nil even for backends with
// nothing to close.
func NewRunStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.RunStore, func(), error) {
	noop := func() {}

	switch cfg.Storage.Provider {
	case "none", "":
		return NoopStore{}, noop, nil

	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local run store: %w", err)
		}
		return store, noop, nil

	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres run store: %w", err)
		}
		return store, store.Close, nil

	case "gcs":
		store, err := gcs.New(ctx, gcs.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("gcs run store: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("close gcs store", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}
