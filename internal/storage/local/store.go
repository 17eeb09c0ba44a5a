// Package local implements a filesystem run store.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopscout/shopscout/internal/pipeline"
)

var safeRunID = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// Config captures the parameters for the local run store.
type Config struct {
	// BaseDir is the root directory where run documents are written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store serializes one JSON document per run onto the local filesystem.
type Store struct {
	baseDir string
}

// New creates a filesystem-backed run store, verifying the base
// directory exists and is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// SaveRun writes the run document as run_<id>_<unix>.json. Run
// identifiers are validated so they cannot escape the base directory.
func (s *Store) SaveRun(_ context.Context, state *pipeline.RunState) error {
	if state == nil || state.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if !safeRunID.MatchString(state.RunID) {
		return fmt.Errorf("unsafe run id %q", state.RunID)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}

	name := fmt.Sprintf("run_%s_%d.json", state.RunID, state.StartedAt.Unix())
	path := filepath.Join(s.baseDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write run document: %w", err)
	}
	return nil
}
