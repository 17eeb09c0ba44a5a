package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/pipeline"
)

func mediaFixture(t *testing.T) *pipeline.AcquiredMedia {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg bytes"), 0o600))
	return &pipeline.AcquiredMedia{
		Path:        path,
		Kind:        pipeline.MediaImage,
		ContentType: "image/jpeg",
	}
}

func TestExtractStructuredResponse(t *testing.T) {
	t.Parallel()

	var got extractRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/extract", r.URL.Path)
		require.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))
		_, _ = w.Write([]byte(`{
			"products": [{"brand": "Acme", "product": "Runner 2", "variant": "red", "price": "$120"}],
			"search_queries": ["Acme Runner 2 red buy"]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-1", 5*time.Second, zap.NewNop())
	info, err := c.Extract(context.Background(), mediaFixture(t))
	require.NoError(t, err)

	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("jpeg bytes")), got.MediaBase64)
	require.Equal(t, "image", got.MediaKind)

	require.False(t, info.ParseFailed)
	require.Len(t, info.Products, 1)
	require.Equal(t, "Acme", info.Products[0].Brand)
	require.Equal(t, "Runner 2", info.Products[0].Name)
	require.Equal(t, []string{"Acme Runner 2 red buy"}, info.SearchQueries)
}

func TestExtractVideoSendsDerivedFrames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	framePaths := make([]string, 0, 2)
	for i, content := range []string{"frame one", "frame two"} {
		path := filepath.Join(dir, fmt.Sprintf("frame_%02d.jpg", i+1))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		framePaths = append(framePaths, path)
	}

	var got extractRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))
		_, _ = w.Write([]byte(`{"search_queries": ["Acme Runner 2 buy"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, zap.NewNop())
	media := &pipeline.AcquiredMedia{
		Path:        filepath.Join(dir, "reel.mp4"),
		Kind:        pipeline.MediaVideo,
		ContentType: "video/mp4",
		Frames:      framePaths,
	}
	_, err := c.Extract(context.Background(), media)
	require.NoError(t, err)

	// The raw footage stays home; the service sees still images only.
	require.Empty(t, got.MediaBase64)
	require.Equal(t, []string{
		base64.StdEncoding.EncodeToString([]byte("frame one")),
		base64.StdEncoding.EncodeToString([]byte("frame two")),
	}, got.FramesBase64)
	require.Equal(t, "video", got.MediaKind)
	require.Equal(t, "image/jpeg", got.ContentType)
}

func TestExtractMissingFrameFileIsPermanent(t *testing.T) {
	t.Parallel()

	c := NewClient("http://unused.example", "", time.Second, zap.NewNop())
	media := &pipeline.AcquiredMedia{
		Path:   "/nonexistent/reel.mp4",
		Kind:   pipeline.MediaVideo,
		Frames: []string{"/nonexistent/frame_01.jpg"},
	}
	_, err := c.Extract(context.Background(), media)
	require.Error(t, err)
	require.Equal(t, pipeline.KindPermanent, pipeline.KindOf(err))
}

func TestExtractFallsBackToDerivedQueries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"products": [{"brand": "Acme", "product": "Runner 2", "variant": "red"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, zap.NewNop())
	info, err := c.Extract(context.Background(), mediaFixture(t))
	require.NoError(t, err)
	require.Equal(t, []string{"Acme Runner 2 red"}, info.SearchQueries)
}

func TestExtractUnstructuredResponseKeepsRawText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("The image shows a red running shoe, possibly an Acme Runner 2."))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second, zap.NewNop())
	info, err := c.Extract(context.Background(), mediaFixture(t))
	require.NoError(t, err)
	require.True(t, info.ParseFailed)
	require.Contains(t, info.RawText, "red running shoe")
	require.Empty(t, info.Products)
}

func TestExtractStatusClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		kind   pipeline.Kind
	}{
		{http.StatusTooManyRequests, pipeline.KindRateLimited},
		{http.StatusInternalServerError, pipeline.KindTransient},
		{http.StatusUnprocessableEntity, pipeline.KindPermanent},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		c := NewClient(srv.URL, "", 5*time.Second, zap.NewNop())
		_, err := c.Extract(context.Background(), mediaFixture(t))
		require.Error(t, err, tc.status)
		require.Equal(t, tc.kind, pipeline.KindOf(err), tc.status)
		srv.Close()
	}
}

func TestExtractMissingMediaFileIsPermanent(t *testing.T) {
	t.Parallel()

	c := NewClient("http://unused.example", "", time.Second, zap.NewNop())
	_, err := c.Extract(context.Background(), &pipeline.AcquiredMedia{Path: "/nonexistent/frame.jpg"})
	require.Error(t, err)
	require.Equal(t, pipeline.KindPermanent, pipeline.KindOf(err))
}
