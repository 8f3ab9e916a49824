package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
	"github.com/Abhi-vish/financial-insights-ai/internal/session"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

type sessionResponse struct {
	SessionID  string           `json:"session_id"`
	Filename   string           `json:"filename"`
	Format     string           `json:"format"`
	RowCount   int              `json:"row_count"`
	Columns    []dataset.Column `json:"columns"`
	CreatedAt  time.Time        `json:"created_at"`
	LastAccess time.Time        `json:"last_access"`
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}

	resp := sessionResponse{
		SessionID:  sess.ID,
		Filename:   sess.Filename,
		Format:     string(sess.Format),
		RowCount:   sess.RowCount,
		CreatedAt:  sess.CreatedAt,
		LastAccess: sess.LastAccess,
	}
	if sess.Dataset != nil {
		resp.Columns = sess.Dataset.Schema.Columns
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleSessionInsights(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := lookupSession(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"summary":    sess.Summary,
	})
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	sess, err := deps.Sessions.Get(ctx, id)
	if err != nil {
		writeSessionError(deps, w, r, id, err)
		return
	}

	if err := deps.Sessions.Delete(ctx, id); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to delete the session", true, nil)
		return
	}
	if sess.ObjectPath != "" && deps.ObjectStore != nil {
		if err := deps.ObjectStore.Delete(ctx, sess.ObjectPath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			if deps.Logger != nil {
				deps.Logger.WarnContext(ctx, "failed to delete session object",
					slog.String("session_id", id),
					slog.String("object_path", sess.ObjectPath),
					slog.Any("error", err))
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func lookupSession(deps Dependencies, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	sess, err := deps.Sessions.Get(r.Context(), id)
	if err != nil {
		writeSessionError(deps, w, r, id, err)
		return nil, false
	}
	return sess, true
}

func writeSessionError(deps Dependencies, w http.ResponseWriter, r *http.Request, id string, err error) {
	ctx := r.Context()
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(ctx, w, http.StatusNotFound, "SESSION_NOT_FOUND", "unknown or expired session", false, map[string]any{
			"session_id": id,
		})
		return
	}
	if deps.Logger != nil {
		deps.Logger.ErrorContext(ctx, "session lookup failed", slog.String("session_id", id), slog.Any("error", err))
	}
	writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", "failed to load the session", true, nil)
}
