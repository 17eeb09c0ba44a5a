package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/config"
	"github.com/shopscout/shopscout/internal/dispatch"
	"github.com/shopscout/shopscout/internal/extract"
	sha256hash "github.com/shopscout/shopscout/internal/hash/sha256"
	"github.com/shopscout/shopscout/internal/pipeline"
)

const testAppSecret = "test-secret"

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, state *pipeline.RunState) *pipeline.RunState {
	return state
}

type nopSender struct{}

func (nopSender) Send(context.Context, string, string) error { return nil }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func newTestServer(t *testing.T, verifySignatures bool) (*Server, *stubRunner) {
	t.Helper()
	runner := &stubRunner{}
	d := dispatch.New(
		dispatch.NewLedger(100),
		extract.NewEngine(nil, zap.NewNop()),
		runner,
		nopSender{},
		sha256hash.New(),
		realClock{},
		dispatch.Config{SelfID: "self-1"},
		zap.NewNop(),
	)
	cfg := config.Webhook{
		VerifyToken:      "verify-me",
		AppSecret:        testAppSecret,
		VerifySignatures: verifySignatures,
	}
	return NewServer(d, cfg, zap.NewNop()), runner
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testAppSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookEchoesChallenge(t *testing.T) {
	srv, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "12345", rec.Body.String())
}

func TestVerifyWebhookRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NotContains(t, rec.Body.String(), "12345")
}

func TestReceiveWebhookRejectsBadSignature(t *testing.T) {
	srv, _ := newTestServer(t, true)

	body := []byte(`{"object":"instagram","entry":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(signatureHeader, "sha256=deadbeef")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReceiveWebhookAcceptsSignedDelivery(t *testing.T) {
	srv, _ := newTestServer(t, true)

	body := []byte(`{"object":"instagram","entry":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sign(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "received")
}

func TestReceiveWebhookAbsorbsUndecodableBody(t *testing.T) {
	srv, _ := newTestServer(t, true)

	body := []byte(`not json at all`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(signatureHeader, sign(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	// A well-signed but unparsable body is acknowledged, not errored:
	// persistent non-200s get the webhook deregistered.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ignored")
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, false)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	srv, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
