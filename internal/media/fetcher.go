// Package media downloads run media from platform CDN URLs and owns
// the per-run artifact directories.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/pipeline"
)

const (
	defaultMaxBytes   = 50 << 20
	defaultFrameCount = 10
)

// CDN hosts refuse non-browser clients, so downloads carry a browser
// user agent and referer.
var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":     "*/*",
	"Referer":    "https://www.facebook.com/",
}

// Fetcher implements pipeline.MediaFetcher over plain HTTP. Video
// downloads additionally get still frames derived into the run
// directory via ffmpeg.
type Fetcher struct {
	workDir     string
	client      *http.Client
	maxBytes    int64
	ffmpegPath  string
	ffprobePath string
	frameCount  int
	logger      *zap.Logger
}

// Option adjusts Fetcher construction.
type Option func(*Fetcher)

// WithFrameTools overrides the ffmpeg/ffprobe binaries and the number
// of still frames derived per video.
func WithFrameTools(ffmpegPath, ffprobePath string, frameCount int) Option {
	return func(f *Fetcher) {
		if ffmpegPath != "" {
			f.ffmpegPath = ffmpegPath
		}
		if ffprobePath != "" {
			f.ffprobePath = ffprobePath
		}
		if frameCount > 0 {
			f.frameCount = frameCount
		}
	}
}

// NewFetcher builds a Fetcher rooted at workDir. Each run gets its own
// subdirectory, removed by Cleanup.
func NewFetcher(workDir string, timeout time.Duration, maxBytes int64, logger *zap.Logger, opts ...Option) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fetcher{
		workDir:     workDir,
		client:      &http.Client{Timeout: timeout},
		maxBytes:    maxBytes,
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		frameCount:  defaultFrameCount,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the referenced media into the run's directory and
// reports the detected media kind. Transport faults and upstream 5xx
// responses come back transient; 4xx responses are permanent.
func (f *Fetcher) Fetch(ctx context.Context, runID, rawURL string) (*pipeline.AcquiredMedia, error) {
	dir, err := f.runDir(runID)
	if err != nil {
		return nil, pipeline.Permanent(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pipeline.Transient(fmt.Errorf("create run dir: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, pipeline.Permanent(fmt.Errorf("build media request: %w", err))
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("fetch media: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, pipeline.Transient(fmt.Errorf("fetch media: upstream status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, pipeline.Permanent(fmt.Errorf("fetch media: status %d", resp.StatusCode))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	kind := kindOf(contentType)

	name := artifactName(rawURL, contentType)
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("create media file: %w", err))
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("write media file: %w", err))
	}
	if n > f.maxBytes {
		return nil, pipeline.Permanent(fmt.Errorf("media exceeds %d byte limit", f.maxBytes))
	}

	f.logger.Debug("media downloaded",
		zap.String("run_id", runID),
		zap.String("path", path),
		zap.String("content_type", contentType),
		zap.Int64("bytes", n),
	)

	acquired := &pipeline.AcquiredMedia{
		Path:        path,
		Kind:        kind,
		ContentType: contentType,
		SizeBytes:   n,
	}

	if kind == pipeline.MediaVideo {
		frames, ferr := f.deriveFrames(ctx, dir, path)
		if ferr != nil {
			// Extraction falls back to the raw footage.
			f.logger.Warn("frame derivation failed",
				zap.String("run_id", runID),
				zap.Error(ferr),
			)
		} else {
			acquired.Frames = frames
		}
	}

	return acquired, nil
}

// Cleanup removes the run's artifact directory. Missing directories
// are not an error.
func (f *Fetcher) Cleanup(runID string) error {
	dir, err := f.runDir(runID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove run dir: %w", err)
	}
	return nil
}

// runDir resolves the run's directory, refusing identifiers that would
// escape the work root.
func (f *Fetcher) runDir(runID string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return "", errors.New("unsafe run id")
	}
	return filepath.Join(f.workDir, runID), nil
}

func kindOf(contentType string) pipeline.MediaKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return pipeline.MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return pipeline.MediaVideo
	default:
		return pipeline.MediaUnknown
	}
}

// artifactName derives a stable file name from the source URL plus an
// extension matching the content type.
func artifactName(rawURL, contentType string) string {
	sum := sha256.Sum256([]byte(rawURL))
	ext := ".bin"
	switch {
	case strings.Contains(contentType, "image/jpeg"), strings.Contains(contentType, "image/jpg"):
		ext = ".jpg"
	case strings.Contains(contentType, "image/png"):
		ext = ".png"
	case strings.Contains(contentType, "image/gif"):
		ext = ".gif"
	case strings.HasPrefix(contentType, "video/"):
		ext = ".mp4"
	}
	return hex.EncodeToString(sum[:8]) + ext
}
