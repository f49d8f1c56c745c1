package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aishitdharwal/text2sql/internal/query"
	"github.com/aishitdharwal/text2sql/internal/session"
	"github.com/aishitdharwal/text2sql/internal/tenantdb"
)

type loginRequest struct {
	Tenant string `json:"tenant"`
	Secret string `json:"secret"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
	Tenant    string `json:"tenant"`
	Database  string `json:"database_name"`
	CreatedAt string `json:"created_at"`
}

func handleLogin(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Tenant) == "" || req.Secret == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_FAILED", "tenant and secret are required", false, nil)
		return
	}

	sess, err := deps.Registry.Authenticate(r.Context(), req.Tenant, req.Secret)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(r.Context(), w, http.StatusUnauthorized, "AUTH_FAILED", "invalid tenant credentials", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE", "could not open tenant database connection", true, nil)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		SessionID: sess.ID,
		Tenant:    sess.Tenant,
		Database:  sess.Database,
		CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func handleLogout(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !deps.Registry.End(sessionIDFromRequest(r)) {
		writeSessionError(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	tables, err := deps.Query.ListTables(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tables": tables,
		"count":  len(tables),
	})
}

func handleGetSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	snapshot, err := deps.Query.GetSchema(r.Context(), sessionIDFromRequest(r), table)
	if err != nil {
		if errors.Is(err, query.ErrUnknownTable) {
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", err.Error(), false, map[string]any{"table": table})
			return
		}
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": snapshot})
}

type generateRequest struct {
	Question string `json:"question"`
}

func handleGenerate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	result, err := deps.Query.Generate(r.Context(), sessionIDFromRequest(r), req.Question)
	if err != nil {
		switch {
		case errors.Is(err, query.ErrEmptyQuestion):
			writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_FAILED", "question is required", false, nil)
		case errors.Is(err, session.ErrNotAuthenticated):
			writeSessionError(r.Context(), w)
		default:
			writeError(r.Context(), w, http.StatusBadGateway, "GENERATION_FAILED", err.Error(), true, nil)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type executeRequest struct {
	SQL string `json:"sql"`
}

func handleExecute(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	result, err := deps.Query.Execute(r.Context(), sessionIDFromRequest(r), req.SQL)
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			writeSessionError(r.Context(), w)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_FAILED", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type feedbackRequest struct {
	Question string `json:"question"`
	SQL      string `json:"generated_sql"`
	Rating   string `json:"rating"`
	Comment  string `json:"comment"`
}

func handleFeedback(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	err := deps.Query.SubmitFeedback(r.Context(), sessionIDFromRequest(r), tenantdb.Feedback{
		Question: req.Question,
		SQL:      req.SQL,
		Rating:   req.Rating,
		Comment:  req.Comment,
	})
	if err != nil {
		switch {
		case errors.Is(err, query.ErrInvalidRating):
			writeError(r.Context(), w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), false, nil)
		case errors.Is(err, session.ErrNotAuthenticated):
			writeSessionError(r.Context(), w)
		default:
			writeError(r.Context(), w, http.StatusInternalServerError, "FEEDBACK_FAILED", err.Error(), false, nil)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "recorded"})
}

func handleCacheStats(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	stats, err := deps.Query.CacheStats(r.Context(), sessionIDFromRequest(r))
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			writeSessionError(r.Context(), w)
			return
		}
		writeError(r.Context(), w, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeSessionError(ctx context.Context, w http.ResponseWriter) {
	writeError(ctx, w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "unknown or expired session", false, nil)
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotAuthenticated) {
		writeSessionError(ctx, w)
		return
	}
	writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), false, nil)
}
