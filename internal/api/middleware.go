package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// loggingMiddleware logs one line per request. Health probes are logged at
// debug so they do not drown the dispatch logs.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rec := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.Status(),
			"took", time.Since(began),
			"request_id", middleware.GetReqID(r.Context()),
		}
		// route params are resolved once the router has run
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if uid := rctx.URLParam("userID"); uid != "" {
				attrs = append(attrs, "user_id", uid)
			}
		}

		switch {
		case rec.Status() >= 500:
			s.logger.Error("request failed", attrs...)
		case r.URL.Path == "/health":
			s.logger.Debug("request", attrs...)
		default:
			s.logger.Info("request", attrs...)
		}
	})
}

// authMiddleware accepts the API key as a bearer token or in X-API-Key.
// Without a configured key every request passes.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if auth := r.Header.Get("Authorization"); auth != "" {
			key = strings.TrimPrefix(auth, "Bearer ")
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(s.config.APIKey)) != 1 {
			s.logger.Warn("unauthorized API request",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			s.sendError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
