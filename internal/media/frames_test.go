package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writeTool drops an executable shell script standing in for ffmpeg or
// ffprobe.
func writeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

// fakeFFmpeg treats its last argument as the output pattern and writes
// three frame files.
const fakeFFmpegScript = `for last; do :; done
for i in 1 2 3; do
	printf 'jpeg' > "$(printf "$last" "$i")"
done
`

const fakeFFprobeScript = `echo 12.0
`

func TestDeriveFramesSamplesVideo(t *testing.T) {
	t.Parallel()

	toolDir := t.TempDir()
	ffmpeg := writeTool(t, toolDir, "ffmpeg", fakeFFmpegScript)
	ffprobe := writeTool(t, toolDir, "ffprobe", fakeFFprobeScript)

	workDir := t.TempDir()
	f := NewFetcher(workDir, 5*time.Second, 0, zap.NewNop(), WithFrameTools(ffmpeg, ffprobe, 10))

	runDir := filepath.Join(workDir, "run-v1")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	videoPath := filepath.Join(runDir, "reel.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("mp4 bytes"), 0o600))

	frames, err := f.deriveFrames(context.Background(), runDir, videoPath)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for _, frame := range frames {
		require.FileExists(t, frame)
		require.Contains(t, filepath.Base(frame), "frame_")
	}
}

func TestDeriveFramesFailsWhenNoOutput(t *testing.T) {
	t.Parallel()

	toolDir := t.TempDir()
	ffmpeg := writeTool(t, toolDir, "ffmpeg", "exit 0\n")
	ffprobe := writeTool(t, toolDir, "ffprobe", fakeFFprobeScript)

	workDir := t.TempDir()
	f := NewFetcher(workDir, 5*time.Second, 0, zap.NewNop(), WithFrameTools(ffmpeg, ffprobe, 10))

	runDir := filepath.Join(workDir, "run-v2")
	require.NoError(t, os.MkdirAll(runDir, 0o755))

	_, err := f.deriveFrames(context.Background(), runDir, filepath.Join(runDir, "reel.mp4"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no output")
}

func TestFetchVideoDerivesFrames(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4 bytes"))
	}))
	defer srv.Close()

	toolDir := t.TempDir()
	ffmpeg := writeTool(t, toolDir, "ffmpeg", fakeFFmpegScript)
	ffprobe := writeTool(t, toolDir, "ffprobe", fakeFFprobeScript)

	f := NewFetcher(t.TempDir(), 5*time.Second, 0, zap.NewNop(), WithFrameTools(ffmpeg, ffprobe, 10))
	media, err := f.Fetch(context.Background(), "run-v3", srv.URL)
	require.NoError(t, err)
	require.Len(t, media.Frames, 3)
	for _, frame := range media.Frames {
		require.FileExists(t, frame)
	}
}

func TestFetchVideoSurvivesFrameToolFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4 bytes"))
	}))
	defer srv.Close()

	toolDir := t.TempDir()
	ffmpeg := writeTool(t, toolDir, "ffmpeg", "echo broken >&2\nexit 1\n")
	ffprobe := writeTool(t, toolDir, "ffprobe", "exit 1\n")

	f := NewFetcher(t.TempDir(), 5*time.Second, 0, zap.NewNop(), WithFrameTools(ffmpeg, ffprobe, 10))
	media, err := f.Fetch(context.Background(), "run-v4", srv.URL)

	// The download still succeeds; extraction falls back to the footage.
	require.NoError(t, err)
	require.Empty(t, media.Frames)
	require.FileExists(t, media.Path)
}
