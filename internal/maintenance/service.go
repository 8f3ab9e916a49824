// Package maintenance expires idle sessions and cleans up what they leave
// behind in object storage.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/session"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

type Config struct {
	SweepInterval time.Duration
}

type Service struct {
	Sessions    session.Store
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
}

type SweepSummary struct {
	SessionsExpired int `json:"sessions_expired"`
	ObjectsDeleted  int `json:"objects_deleted"`
	Failures        int `json:"failures"`
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunSweepOnce(ctx)
			if err != nil {
				if s.Logger != nil {
					s.Logger.ErrorContext(ctx, "session sweep failed", slog.Any("error", err), slog.Any("summary", summary))
				}
				continue
			}
			if s.Logger != nil && summary.SessionsExpired > 0 {
				s.Logger.InfoContext(ctx, "session sweep completed", slog.Any("summary", summary))
			}
		}
	}
}

// RunSweepOnce expires idle sessions and deletes their stored uploads.
// Object deletion failures are counted but do not abort the sweep.
func (s *Service) RunSweepOnce(ctx context.Context) (SweepSummary, error) {
	s.ensureDefaults()
	if s.Sessions == nil {
		return SweepSummary{}, fmt.Errorf("session store is required")
	}

	removed, err := s.Sessions.Sweep(ctx, s.Clock())
	if err != nil {
		return SweepSummary{}, fmt.Errorf("sweep sessions: %w", err)
	}

	summary := SweepSummary{SessionsExpired: len(removed)}
	for _, sess := range removed {
		if sess.ObjectPath == "" || s.ObjectStore == nil {
			continue
		}
		if err := s.ObjectStore.Delete(ctx, sess.ObjectPath); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				continue
			}
			summary.Failures++
			if s.Logger != nil {
				s.Logger.WarnContext(ctx, "failed to delete expired session object",
					slog.String("session_id", sess.ID),
					slog.String("object_path", sess.ObjectPath),
					slog.Any("error", err))
			}
			continue
		}
		summary.ObjectsDeleted++
	}
	return summary, nil
}

func (s *Service) ensureDefaults() {
	if s.Config.SweepInterval <= 0 {
		s.Config.SweepInterval = 5 * time.Minute
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
}
