package api

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/nostrbackup/internal/logfields"
)

// TokenMiddleware requires a bearer token on wrapped routes. An empty token
// disables the check.
func TokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := extractToken(r)
			if got == "" {
				slog.Warn("Missing API token", slog.String("path", r.URL.Path))
				writeUnauthorized(w, http.StatusUnauthorized, "missing API token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				slog.Warn("Invalid API token", slog.String("path", r.URL.Path))
				writeUnauthorized(w, http.StatusForbidden, "invalid API token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the Authorization bearer token, falling back to X-API-Token.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}

func writeUnauthorized(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}

// RequestLogger logs each request through slog.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				logfields.DurationMS(float64(time.Since(start).Milliseconds())))
		})
	}
}
