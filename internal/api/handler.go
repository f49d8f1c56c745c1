// Package api exposes the HTTP surface: tenant login/logout, schema
// discovery, SQL generation and execution, feedback, and cache stats.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aishitdharwal/text2sql/internal/cache"
	"github.com/aishitdharwal/text2sql/internal/config"
	"github.com/aishitdharwal/text2sql/internal/observability"
	"github.com/aishitdharwal/text2sql/internal/query"
	"github.com/aishitdharwal/text2sql/internal/session"
	"github.com/aishitdharwal/text2sql/internal/tenant"
)

type ReadinessCheck func(ctx context.Context) error

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Registry          *session.Registry
	Query             *query.Service
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/login", func(w http.ResponseWriter, r *http.Request) {
		handleLogin(deps, w, r)
	})

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/logout", func(w http.ResponseWriter, r *http.Request) {
		handleLogout(deps, w, r)
	})
	protected.HandleFunc("GET /v1/tables", func(w http.ResponseWriter, r *http.Request) {
		handleListTables(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleGetSchema(deps, w, r)
	})
	protected.HandleFunc("POST /v1/query/generate", func(w http.ResponseWriter, r *http.Request) {
		handleGenerate(deps, w, r)
	})
	protected.HandleFunc("POST /v1/query/execute", func(w http.ResponseWriter, r *http.Request) {
		handleExecute(deps, w, r)
	})
	protected.HandleFunc("POST /v1/feedback", func(w http.ResponseWriter, r *http.Request) {
		handleFeedback(deps, w, r)
	})
	protected.HandleFunc("GET /v1/cache/stats", func(w http.ResponseWriter, r *http.Request) {
		handleCacheStats(deps, w, r)
	})

	protectedHandler := requireSession(protected)
	mux.Handle("POST /v1/logout", protectedHandler)
	mux.Handle("GET /v1/tables", protectedHandler)
	mux.Handle("GET /v1/schema", protectedHandler)
	mux.Handle("POST /v1/query/generate", protectedHandler)
	mux.Handle("POST /v1/query/execute", protectedHandler)
	mux.Handle("POST /v1/feedback", protectedHandler)
	mux.Handle("GET /v1/cache/stats", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckTenantDirectory reports readiness only when at least one tenant is
// configured.
func CheckTenantDirectory(directory *tenant.StaticDirectory) ReadinessCheck {
	return func(_ context.Context) error {
		if directory == nil || directory.Len() == 0 {
			return errors.New("no tenants are configured")
		}
		return nil
	}
}

// CheckCacheStore pings the cache backend. A disabled cache passes.
func CheckCacheStore(client *cache.Client) ReadinessCheck {
	return func(ctx context.Context) error {
		if client == nil {
			return nil
		}
		return client.HealthCheck(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST_BODY", err.Error(), false, nil)
		return false
	}
	return true
}

type sessionIDKeyType struct{}

var sessionIDKey sessionIDKeyType

// requireSession extracts the caller's session ID from the X-Session-ID
// header or a bearer token and rejects requests that carry neither. The ID is
// only validated against the registry by the handlers themselves.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Session-ID"))
		if id == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				id = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if id == "" {
			writeError(r.Context(), w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "missing session", false, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionIDKey, id)))
	})
}

func sessionIDFromRequest(r *http.Request) string {
	id, _ := r.Context().Value(sessionIDKey).(string)
	return id
}
