// Package gcs provides a run store backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/shopscout/shopscout/internal/pipeline"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Store writes one JSON document per run into a GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed run store with default credentials.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return NewWithClient(client, cfg)
}

// NewWithClient builds a Store from an existing client (primarily for
// testing).
func NewWithClient(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}

// SaveRun uploads the run document as <prefix>/run_<id>_<unix>.json.
func (s *Store) SaveRun(ctx context.Context, state *pipeline.RunState) error {
	if state == nil || state.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	name := fmt.Sprintf("run_%s_%d.json", state.RunID, state.StartedAt.Unix())
	if s.prefix != "" {
		name = s.prefix + "/" + name
	}

	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := io.Copy(writer, bytes.NewReader(doc)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write run document: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write run document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
