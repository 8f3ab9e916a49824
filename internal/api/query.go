package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Abhi-vish/financial-insights-ai/internal/session"
)

type queryRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON with session_id and question", false, nil)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Question = strings.TrimSpace(req.Question)
	if req.SessionID == "" || req.Question == "" {
		writeError(ctx, w, http.StatusBadRequest, "INVALID_REQUEST", "session_id and question are required", false, nil)
		return
	}

	envelope, err := deps.Engine.Answer(ctx, req.SessionID, req.Question)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(ctx, w, http.StatusNotFound, "SESSION_NOT_FOUND", "unknown or expired session", false, map[string]any{
				"session_id": req.SessionID,
			})
			return
		}
		if deps.Logger != nil {
			deps.Logger.ErrorContext(ctx, "query failed", slog.String("session_id", req.SessionID), slog.Any("error", err))
		}
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to answer the question", true, nil)
		return
	}

	writeJSON(w, http.StatusOK, envelope)
}
