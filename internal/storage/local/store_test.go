package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shopscout/shopscout/internal/pipeline"
)

func TestNewCreatesBaseDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "runs")
	_, err := New(Config{BaseDir: dir})
	require.NoError(t, err)
	require.DirExists(t, dir)
}

func TestNewRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestNewRejectsFileAsBaseDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := New(Config{BaseDir: path})
	require.Error(t, err)
}

func TestSaveRunWritesDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := &pipeline.RunState{
		RunID:       "m-1",
		SenderID:    "user-1",
		StartedAt:   started,
		ProductURLs: []string{"https://a.example/p/1"},
		Succeeded:   true,
	}
	require.NoError(t, store.SaveRun(context.Background(), state))

	path := filepath.Join(dir, fmt.Sprintf("run_m-1_%d.json", started.Unix()))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got pipeline.RunState
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "m-1", got.RunID)
	require.Equal(t, []string{"https://a.example/p/1"}, got.ProductURLs)
	require.True(t, got.Succeeded)
}

func TestSaveRunRejectsUnsafeRunID(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "a/b", "a b"} {
		err := store.SaveRun(context.Background(), &pipeline.RunState{RunID: id})
		require.Error(t, err, id)
	}
}
