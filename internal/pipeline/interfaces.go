package pipeline

import (
	"context"
	"time"
)

// MediaFetcher acquires the referenced media for a run and owns the run's
// local artifacts until Cleanup.
type MediaFetcher interface {
	Fetch(ctx context.Context, runID string, url string) (*AcquiredMedia, error)
	Cleanup(runID string) error
}

// Extractor turns acquired media into structured product information with
// search queries.
type Extractor interface {
	Extract(ctx context.Context, media *AcquiredMedia) (*ProductInfo, error)
}

// Searcher resolves search queries into purchase-candidate URLs plus usage
// counters. Rate-limited failures must be wrapped with RateLimited so the
// retry policy can distinguish them.
type Searcher interface {
	Search(ctx context.Context, queries []string) ([]string, SearchUsage, error)
}

// RunStore persists the final state of a run. Best effort: failures are
// logged, never surfaced to the user.
type RunStore interface {
	SaveRun(ctx context.Context, state *RunState) error
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
