// Package pipeline defines the run state and the orchestrator that drives a
// single discovery run through its stages.
package pipeline

import (
	"time"
)

// Stage names as they appear in the run log.
const (
	StageAcquire  = "acquire"
	StageExtract  = "extract"
	StageSearch   = "search"
	StageFinalize = "finalize"
)

// StageStatus is the outcome recorded for one stage attempt.
type StageStatus string

// Stage statuses persisted in the run log.
const (
	StatusStarted StageStatus = "started"
	StatusSuccess StageStatus = "success"
	StatusError   StageStatus = "error"
	StatusSkipped StageStatus = "skipped"
)

// MediaKind classifies acquired media by content type.
type MediaKind string

// Media kinds reported by the acquire collaborator.
const (
	MediaImage   MediaKind = "image"
	MediaVideo   MediaKind = "video"
	MediaUnknown MediaKind = "unknown"
)

// StageLogEntry is one append-only record in the run log. Entries are never
// overwritten; retries produce additional entries.
type StageLogEntry struct {
	Stage           string         `json:"stage"`
	Status          StageStatus    `json:"status"`
	Timestamp       time.Time      `json:"timestamp"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
	Message         string         `json:"message,omitempty"`
	Error           string         `json:"error,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// AcquiredMedia is the local handle returned by the acquire collaborator.
// For videos, Frames lists still images derived from the footage; they
// live in the run directory and go away with it.
type AcquiredMedia struct {
	Path        string    `json:"path"`
	Kind        MediaKind `json:"kind"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Frames      []string  `json:"extracted_frames,omitempty"`
}

// Product is one extracted brand/product pairing.
type Product struct {
	Brand   string `json:"brand,omitempty"`
	Name    string `json:"name,omitempty"`
	Variant string `json:"variant,omitempty"`
	Price   string `json:"price,omitempty"`
}

// ProductInfo is the structured payload returned by the extract collaborator.
// When structured parsing fails, RawText holds the unparsed response and
// ParseFailed is set.
type ProductInfo struct {
	Products      []Product `json:"products,omitempty"`
	SearchQueries []string  `json:"search_queries,omitempty"`
	RawText       string    `json:"raw_text,omitempty"`
	ParseFailed   bool      `json:"parse_failed,omitempty"`
}

// SearchUsage captures billing-relevant counters from the search collaborator.
type SearchUsage struct {
	Requests         int     `json:"api_requests"`
	Searches         int     `json:"web_searches"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// RunState is the mutable record threaded through all stages of one run.
// It has a single writer: the orchestrator that owns the run.
type RunState struct {
	RunID    string `json:"run_id"`
	SenderID string `json:"sender_id"`

	// SourceURL is the reference handed to the acquire stage: a CDN media
	// URL or the leading candidate link from extraction.
	SourceURL     string   `json:"source_url,omitempty"`
	CandidateURLs []string `json:"candidate_urls,omitempty"`

	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`

	Media         *AcquiredMedia `json:"media,omitempty"`
	Product       *ProductInfo   `json:"product,omitempty"`
	SearchQueries []string       `json:"search_queries,omitempty"`
	ProductURLs   []string       `json:"product_urls,omitempty"`
	SearchUsage   *SearchUsage   `json:"search_usage,omitempty"`

	AcquireError string `json:"acquire_error,omitempty"`
	ExtractError string `json:"extract_error,omitempty"`
	SearchError  string `json:"search_error,omitempty"`

	// RateLimited records that the search stage exhausted its retries on a
	// rate-limited failure, so result delivery can say so.
	RateLimited bool `json:"rate_limited,omitempty"`

	Logs      []StageLogEntry `json:"logs"`
	Succeeded bool            `json:"succeeded"`
}

// AppendLog adds one entry to the run log.
func (s *RunState) AppendLog(entry StageLogEntry) {
	s.Logs = append(s.Logs, entry)
}

// HasStageError reports whether any stage recorded an error.
func (s *RunState) HasStageError() bool {
	return s.AcquireError != "" || s.ExtractError != "" || s.SearchError != ""
}

// FirstError returns the earliest recorded stage error, in stage order.
func (s *RunState) FirstError() string {
	switch {
	case s.AcquireError != "":
		return s.AcquireError
	case s.ExtractError != "":
		return s.ExtractError
	case s.SearchError != "":
		return s.SearchError
	default:
		return ""
	}
}
