// Package api exposes the HTTP surface: dataset upload, question answering,
// session management and operational endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Abhi-vish/financial-insights-ai/internal/answer"
	"github.com/Abhi-vish/financial-insights-ai/internal/auth"
	"github.com/Abhi-vish/financial-insights-ai/internal/config"
	"github.com/Abhi-vish/financial-insights-ai/internal/observability"
	"github.com/Abhi-vish/financial-insights-ai/internal/session"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

// QueryEngine answers one question against a stored session.
type QueryEngine interface {
	Answer(ctx context.Context, sessionID, question string) (answer.Envelope, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Sessions          session.Store
	ObjectStore       storage.ObjectStore
	Engine            QueryEngine
	Maintenance       MaintenanceRunner
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

	type route struct {
		pattern string
		role    string
		handler http.HandlerFunc
	}
	routes := []route{
		{"POST /v1/upload", auth.RoleUploader, func(w http.ResponseWriter, r *http.Request) {
			handleUpload(cfg, deps, w, r)
		}},
		{"POST /v1/query", auth.RoleQueryReader, func(w http.ResponseWriter, r *http.Request) {
			handleQuery(deps, w, r)
		}},
		{"GET /v1/sessions/{id}", auth.RoleQueryReader, func(w http.ResponseWriter, r *http.Request) {
			handleGetSession(deps, w, r)
		}},
		{"GET /v1/sessions/{id}/insights", auth.RoleQueryReader, func(w http.ResponseWriter, r *http.Request) {
			handleSessionInsights(deps, w, r)
		}},
		{"DELETE /v1/sessions/{id}", auth.RoleUploader, func(w http.ResponseWriter, r *http.Request) {
			handleDeleteSession(deps, w, r)
		}},
		{"POST /v1/maintenance/sweep", auth.RoleUploader, func(w http.ResponseWriter, r *http.Request) {
			handleSweepRun(deps, w, r)
		}},
	}

	for _, rt := range routes {
		var handler http.Handler = rt.handler
		if cfg.Auth.Required {
			if deps.AuthMiddleware == nil {
				if deps.Logger != nil {
					deps.Logger.Error("auth required but auth middleware missing")
				}
				handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
				})
			} else {
				handler = deps.AuthMiddleware(auth.RequireRole(rt.role)(handler))
			}
		}
		mux.Handle(rt.pattern, handler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckAIConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.AI.APIKey == "" {
			return errors.New("ai api key is not configured")
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
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
