// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/api"
	"github.com/shopscout/shopscout/internal/clock/system"
	"github.com/shopscout/shopscout/internal/config"
	"github.com/shopscout/shopscout/internal/dispatch"
	"github.com/shopscout/shopscout/internal/extract"
	"github.com/shopscout/shopscout/internal/hash/sha256"
	"github.com/shopscout/shopscout/internal/logging"
	"github.com/shopscout/shopscout/internal/media"
	"github.com/shopscout/shopscout/internal/metrics"
	"github.com/shopscout/shopscout/internal/pipeline"
	"github.com/shopscout/shopscout/internal/platform"
	"github.com/shopscout/shopscout/internal/publisher/memory"
	"github.com/shopscout/shopscout/internal/publisher/pubsub"
	"github.com/shopscout/shopscout/internal/search"
	"github.com/shopscout/shopscout/internal/storage"
	"github.com/shopscout/shopscout/internal/vision"
)

// App holds the shared, long-lived services for the webhook service.
// It is initialized once at startup and torn down by Close.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Dispatcher *dispatch.Dispatcher
	Server     *api.Server

	closers []func()
}

// New builds the full service graph from configuration. It fails fast
// when any critical collaborator cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	store, closeStore, err := storage.NewRunStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	var pub pipeline.Publisher
	if cfg.PubSub.Enabled {
		p, err := pubsub.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, func() {
			if cerr := p.Close(); cerr != nil {
				logger.Warn("close pubsub publisher", zap.Error(cerr))
			}
		})
		pub = p
	} else {
		pub = memory.New()
	}

	clk := system.New()

	fetcher := media.NewFetcher(
		cfg.Media.WorkDir,
		time.Duration(cfg.Media.TimeoutSeconds)*time.Second,
		cfg.Media.MaxBytes,
		logger.Named("media"),
		media.WithFrameTools(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, cfg.Media.FrameCount),
	)

	extractor := vision.NewClient(
		cfg.Vision.BaseURL,
		cfg.Vision.APIKey,
		time.Duration(cfg.Vision.TimeoutSeconds)*time.Second,
		logger.Named("vision"),
	)

	searcher := search.NewClient(
		cfg.Search.BaseURL,
		cfg.Search.APIKey,
		time.Duration(cfg.Search.TimeoutSeconds)*time.Second,
		cfg.Search.CostPerSearch,
		logger.Named("search"),
	)

	policy := pipeline.RetryPolicy{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		BaseDelay:         time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:          time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		RateLimitDelay:    time.Duration(cfg.Retry.RateLimitDelaySec) * time.Second,
		RateLimitAttempts: cfg.Retry.RateLimitAttempts,
	}

	orchestrator := pipeline.New(
		fetcher,
		extractor,
		searcher,
		store,
		pub,
		clk,
		policy,
		pipeline.Config{
			StageTimeout: cfg.StageTimeout(),
			Topic:        cfg.PubSub.TopicName,
		},
		logger.Named("pipeline"),
	)

	expander := extract.NewExpander(
		time.Duration(cfg.Media.ExpandTimeout)*time.Second,
		cfg.Media.ExpandMaxHops,
	)
	engine := extract.NewEngine(expander, logger.Named("extract"))

	messenger := platform.NewMessenger(
		cfg.Messenger.GraphURL,
		cfg.Messenger.AccessToken,
		cfg.MessengerTimeout(),
		logger.Named("messenger"),
	)

	a.Dispatcher = dispatch.New(
		dispatch.NewLedger(cfg.Dedup.MaxTracked),
		engine,
		orchestrator,
		messenger,
		sha256.New(),
		clk,
		dispatch.Config{
			SelfID:         cfg.Messenger.SelfID,
			URLsPerMessage: cfg.Results.URLsPerMessage,
		},
		logger.Named("dispatch"),
	)

	a.Server = api.NewServer(a.Dispatcher, cfg.Webhook, logger.Named("api"))

	logger.Info("application services initialized",
		zap.String("storage_provider", cfg.Storage.Provider),
		zap.Bool("pubsub_enabled", cfg.PubSub.Enabled),
	)

	return a, nil
}

// Close waits for in-flight runs and releases service resources.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.Logger.Info("shutting down application services")
	a.Dispatcher.Wait()
	for _, closeFn := range a.closers {
		closeFn()
	}
	_ = a.Logger.Sync()
}
