// Package api exposes the HTTP interface for the webhook service.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/config"
	"github.com/shopscout/shopscout/internal/dispatch"
	"github.com/shopscout/shopscout/internal/metrics"
	"github.com/shopscout/shopscout/internal/platform"
)

// maxBodyBytes bounds webhook request bodies. Platform deliveries are
// small; anything larger is hostile.
const maxBodyBytes = 1 << 20

// Server wires HTTP handlers to the dispatcher.
type Server struct {
	router     chi.Router
	dispatcher *dispatch.Dispatcher
	cfg        config.Webhook
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(dispatcher *dispatch.Dispatcher, cfg config.Webhook, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/webhook", s.verifyWebhook)
	r.Post("/webhook", s.receiveWebhook)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// verifyWebhook answers the platform's challenge-response subscription
// check: echo hub.challenge when the verify token matches.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token == s.cfg.VerifyToken {
		s.logger.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	s.logger.Warn("webhook verification rejected", zap.String("mode", mode))
	writeError(w, http.StatusForbidden, "verification failed")
}

// receiveWebhook handles event deliveries. Responses are always
// 200-class once the signature passes: the platform deregisters
// webhooks that persistently fail, so processing errors are absorbed.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if s.cfg.VerifySignatures {
		if !verifySignature(s.cfg.AppSecret, body, r.Header.Get(signatureHeader)) {
			metrics.EventObserved("rejected")
			s.logger.Warn("signature verification failed")
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	ev, err := platform.ParseEvent(body)
	if err != nil {
		s.logger.Warn("undecodable webhook body", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	s.dispatcher.HandleEvent(r.Context(), ev)
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
