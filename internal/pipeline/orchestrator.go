package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/metrics"
)

// Config controls Orchestrator behavior.
type Config struct {
	// StageTimeout bounds each stage attempt. Zero disables the bound.
	StageTimeout time.Duration
	// Topic is the completion-event topic. Empty disables publishing.
	Topic string
}

// Orchestrator drives one run through acquire, extract, search and finalize.
// Stages run strictly in order; a stage whose upstream failed is skipped, and
// finalize always runs.
type Orchestrator struct {
	media     MediaFetcher
	extractor Extractor
	searcher  Searcher
	store     RunStore
	publisher Publisher
	clock     Clock
	policy    RetryPolicy
	cfg       Config
	logger    *zap.Logger

	// sleep is swappable so tests do not wait out real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs an Orchestrator. store and publisher may be nil when
// persistence or completion events are disabled.
func New(
	media MediaFetcher,
	extractor Extractor,
	searcher Searcher,
	store RunStore,
	publisher Publisher,
	clock Clock,
	policy RetryPolicy,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		media:     media,
		extractor: extractor,
		searcher:  searcher,
		store:     store,
		publisher: publisher,
		clock:     clock,
		policy:    policy,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Run executes the pipeline over state and returns the same state with the
// full log, error slots and the terminal succeeded flag filled in. The run
// always reaches finalize, even when every earlier stage failed.
func (o *Orchestrator) Run(ctx context.Context, state *RunState) *RunState {
	if state.StartedAt.IsZero() {
		state.StartedAt = o.clock.Now()
	}
	log := o.logger.With(zap.String("run_id", state.RunID), zap.String("sender_id", state.SenderID))

	o.runStage(ctx, state, StageAcquire, o.acquire)

	if state.AcquireError != "" {
		o.skipStage(state, StageExtract, StageAcquire, state.AcquireError)
		o.skipStage(state, StageSearch, StageAcquire, state.AcquireError)
	} else {
		o.runStage(ctx, state, StageExtract, o.extract)
		if state.ExtractError != "" {
			o.skipStage(state, StageSearch, StageExtract, state.ExtractError)
		} else {
			o.runStage(ctx, state, StageSearch, o.search)
		}
	}

	o.finalize(ctx, state)

	log.Info("run finished",
		zap.Bool("succeeded", state.Succeeded),
		zap.Int("product_urls", len(state.ProductURLs)),
		zap.Float64("duration_seconds", state.DurationSeconds),
	)
	return state
}

type stageFunc func(ctx context.Context, state *RunState) error

// runStage executes one stage with the retry policy, appending one started
// entry and one success/error entry per attempt.
func (o *Orchestrator) runStage(ctx context.Context, state *RunState, stage string, fn stageFunc) {
	log := o.logger.With(zap.String("run_id", state.RunID), zap.String("stage", stage))

	for attempt := 1; ; attempt++ {
		start := o.clock.Now()
		state.AppendLog(StageLogEntry{
			Stage:     stage,
			Status:    StatusStarted,
			Timestamp: start,
			Metadata:  map[string]any{"attempt": attempt},
		})

		err := o.invoke(ctx, state, fn)
		elapsed := o.clock.Now().Sub(start).Seconds()

		if err == nil {
			entry := StageLogEntry{
				Stage:           stage,
				Status:          StatusSuccess,
				Timestamp:       o.clock.Now(),
				DurationSeconds: elapsed,
				Metadata:        successMetadata(stage, state),
			}
			state.AppendLog(entry)
			metrics.ObserveStage(stage, string(StatusSuccess), elapsed)
			return
		}

		meta := map[string]any{"attempt": attempt}
		if IsRateLimited(err) {
			meta["is_rate_limit"] = true
			meta["error_type"] = "rate_limit"
		}
		state.AppendLog(StageLogEntry{
			Stage:           stage,
			Status:          StatusError,
			Timestamp:       o.clock.Now(),
			DurationSeconds: elapsed,
			Error:           err.Error(),
			Metadata:        meta,
		})
		metrics.ObserveStage(stage, string(StatusError), elapsed)

		if !o.policy.ShouldRetry(err, attempt) {
			o.recordStageError(state, stage, err)
			log.Warn("stage failed", zap.Int("attempts", attempt), zap.Error(err))
			return
		}

		metrics.StageRetried(stage)
		delay := o.policy.Backoff(err, attempt)
		log.Info("retrying stage", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if serr := o.sleep(ctx, delay); serr != nil {
			o.recordStageError(state, stage, err)
			return
		}
	}
}

// invoke calls the stage function with the per-stage timeout and converts
// panics into permanent failures so a misbehaving adapter cannot take the
// run down.
func (o *Orchestrator) invoke(ctx context.Context, state *RunState, fn stageFunc) (err error) {
	if o.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.StageTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("stage panic: %v", r))
		}
	}()
	return fn(ctx, state)
}

// skipStage records a skipped entry preserving the upstream failure.
func (o *Orchestrator) skipStage(state *RunState, stage, upstream, upstreamErr string) {
	state.AppendLog(StageLogEntry{
		Stage:     stage,
		Status:    StatusSkipped,
		Timestamp: o.clock.Now(),
		Message:   fmt.Sprintf("skipped due to %s failure", upstream),
		Error:     upstreamErr,
		Metadata:  map[string]any{"upstream_stage": upstream},
	})
	metrics.ObserveStage(stage, string(StatusSkipped), 0)
}

func (o *Orchestrator) recordStageError(state *RunState, stage string, err error) {
	switch stage {
	case StageAcquire:
		state.AcquireError = err.Error()
	case StageExtract:
		state.ExtractError = err.Error()
	case StageSearch:
		state.SearchError = err.Error()
		if IsRateLimited(err) {
			state.RateLimited = true
		}
	}
}

func (o *Orchestrator) acquire(ctx context.Context, state *RunState) error {
	if state.SourceURL == "" {
		return Permanent(errors.New("no source reference to acquire"))
	}
	media, err := o.media.Fetch(ctx, state.RunID, state.SourceURL)
	if err != nil {
		return fmt.Errorf("acquire media: %w", err)
	}
	state.Media = media
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, state *RunState) error {
	if state.Media == nil {
		return Permanent(errors.New("no acquired media to extract from"))
	}
	info, err := o.extractor.Extract(ctx, state.Media)
	if err != nil {
		return fmt.Errorf("extract product info: %w", err)
	}
	if info == nil {
		return Permanent(errors.New("extraction returned no result"))
	}
	state.Product = info
	state.SearchQueries = info.SearchQueries
	return nil
}

func (o *Orchestrator) search(ctx context.Context, state *RunState) error {
	if len(state.SearchQueries) == 0 {
		return Permanent(errors.New("no search queries available"))
	}
	urls, usage, err := o.searcher.Search(ctx, state.SearchQueries)
	state.SearchUsage = &usage
	if err != nil {
		return fmt.Errorf("search products: %w", err)
	}
	state.ProductURLs = urls
	return nil
}

// finalize computes duration and the terminal succeeded flag, cleans up run
// artifacts, and persists/publishes the result. It never fails the run.
func (o *Orchestrator) finalize(ctx context.Context, state *RunState) {
	log := o.logger.With(zap.String("run_id", state.RunID))

	state.EndedAt = o.clock.Now()
	state.DurationSeconds = state.EndedAt.Sub(state.StartedAt).Seconds()
	state.Succeeded = !state.HasStageError() && len(state.ProductURLs) > 0

	// A failed acquire can still have created the run directory, so
	// cleanup does not depend on the stage having produced media.
	if err := o.media.Cleanup(state.RunID); err != nil {
		log.Warn("artifact cleanup failed", zap.Error(err))
	}

	status := StatusSuccess
	message := fmt.Sprintf("run completed in %.2fs", state.DurationSeconds)
	if !state.Succeeded {
		message = fmt.Sprintf("run completed with errors in %.2fs", state.DurationSeconds)
	}
	state.AppendLog(StageLogEntry{
		Stage:           StageFinalize,
		Status:          status,
		Timestamp:       state.EndedAt,
		DurationSeconds: state.DurationSeconds,
		Message:         message,
		Metadata:        map[string]any{"succeeded": state.Succeeded},
	})

	if o.store != nil {
		if err := o.store.SaveRun(ctx, state); err != nil {
			log.Warn("run persistence failed", zap.Error(err))
		}
	}
	if o.publisher != nil && o.cfg.Topic != "" {
		payload := map[string]any{
			"run_id":       state.RunID,
			"sender_id":    state.SenderID,
			"succeeded":    state.Succeeded,
			"product_urls": len(state.ProductURLs),
			"duration_s":   state.DurationSeconds,
			"finished_at":  state.EndedAt.Format(time.RFC3339),
		}
		if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
			log.Warn("completion publish failed", zap.Error(err))
		}
	}
	metrics.RunFinished(state.Succeeded)
}

func successMetadata(stage string, state *RunState) map[string]any {
	switch stage {
	case StageAcquire:
		if state.Media == nil {
			return nil
		}
		return map[string]any{
			"media_kind":      string(state.Media.Kind),
			"file_size_bytes": state.Media.SizeBytes,
		}
	case StageExtract:
		if state.Product == nil {
			return nil
		}
		meta := map[string]any{
			"num_products":       len(state.Product.Products),
			"num_search_queries": len(state.SearchQueries),
			"parse_failed":       state.Product.ParseFailed,
		}
		if state.Media != nil && len(state.Media.Frames) > 0 {
			meta["num_frames"] = len(state.Media.Frames)
		}
		return meta
	case StageSearch:
		meta := map[string]any{
			"num_queries":    len(state.SearchQueries),
			"num_urls_found": len(state.ProductURLs),
		}
		if state.SearchUsage != nil {
			meta["api_requests"] = state.SearchUsage.Requests
			meta["web_searches"] = state.SearchUsage.Searches
			meta["estimated_cost_usd"] = state.SearchUsage.EstimatedCostUSD
		}
		return meta
	default:
		return nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
