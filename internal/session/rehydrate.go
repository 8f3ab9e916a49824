package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
	"github.com/Abhi-vish/financial-insights-ai/internal/ingest"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

// DatasetLoader rebuilds a typed dataset from a stored upload.
type DatasetLoader interface {
	Load(ctx context.Context, objectPath string, format storage.DatasetFormat, opts ingest.Options) (*dataset.Dataset, error)
}

// RehydratingStore layers a durable catalog under the in-memory store. A miss
// in memory falls through to the catalog and rebuilds the dataset from object
// storage, so a restart or eviction does not invalidate session IDs.
type RehydratingStore struct {
	memory  *MemoryStore
	catalog Catalog
	loader  DatasetLoader
	ttl     time.Duration
	opts    ingest.Options
	logger  *slog.Logger
}

func NewRehydratingStore(memory *MemoryStore, catalog Catalog, loader DatasetLoader, ttl time.Duration, opts ingest.Options, logger *slog.Logger) *RehydratingStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RehydratingStore{
		memory:  memory,
		catalog: catalog,
		loader:  loader,
		ttl:     ttl,
		opts:    opts,
		logger:  logger,
	}
}

func (r *RehydratingStore) Create(ctx context.Context, sess *Session) error {
	if err := r.memory.Create(ctx, sess); err != nil {
		return err
	}
	if _, err := r.catalog.Insert(ctx, RecordOf(sess)); err != nil {
		_ = r.memory.Delete(ctx, sess.ID)
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (r *RehydratingStore) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := r.memory.Get(ctx, id)
	if err == nil {
		if touchErr := r.catalog.TouchLastAccess(ctx, id, sess.LastAccess); touchErr != nil && !errors.Is(touchErr, ErrSessionNotFound) {
			r.logger.WarnContext(ctx, "session touch failed", slog.String("session_id", id), slog.Any("error", touchErr))
		}
		return sess, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	return r.rehydrate(ctx, id)
}

func (r *RehydratingStore) rehydrate(ctx context.Context, id string) (*Session, error) {
	rec, err := r.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ds, err := r.loader.Load(ctx, rec.ObjectPath, rec.Format, r.opts)
	if err != nil {
		return nil, fmt.Errorf("rehydrate session %s: %w", id, err)
	}

	sess := &Session{
		ID:         rec.SessionID,
		Tenant:     rec.TenantID,
		Filename:   rec.Filename,
		Format:     rec.Format,
		ObjectPath: rec.ObjectPath,
		RowCount:   ds.RowCount(),
		CreatedAt:  rec.CreatedAt,
		Dataset:    ds,
		Summary:    dataset.Summarize(ds),
	}
	if err := r.memory.Create(ctx, sess); err != nil {
		// A concurrent request rehydrated it first; serve that copy.
		return r.memory.Get(ctx, id)
	}
	if touchErr := r.catalog.TouchLastAccess(ctx, id, sess.LastAccess); touchErr != nil && !errors.Is(touchErr, ErrSessionNotFound) {
		r.logger.WarnContext(ctx, "session touch failed", slog.String("session_id", id), slog.Any("error", touchErr))
	}
	r.logger.InfoContext(ctx, "session rehydrated from storage",
		slog.String("session_id", id),
		slog.Int("rows", ds.RowCount()))
	return sess, nil
}

func (r *RehydratingStore) Delete(ctx context.Context, id string) error {
	memErr := r.memory.Delete(ctx, id)
	catErr := r.catalog.Delete(ctx, id)
	if catErr != nil && !errors.Is(catErr, ErrSessionNotFound) {
		return catErr
	}
	if memErr != nil && catErr != nil {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RehydratingStore) List(ctx context.Context) ([]*Session, error) {
	return r.memory.List(ctx)
}

// Sweep expires sessions by catalog last-access, which survives restarts.
// Expired in-memory copies are dropped as well.
func (r *RehydratingStore) Sweep(ctx context.Context, now time.Time) ([]*Session, error) {
	if _, err := r.memory.Sweep(ctx, now); err != nil {
		return nil, err
	}

	records, err := r.catalog.ListExpired(ctx, now.Add(-r.ttl))
	if err != nil {
		return nil, err
	}

	var removed []*Session
	for _, rec := range records {
		_ = r.memory.Delete(ctx, rec.SessionID)
		if err := r.catalog.Delete(ctx, rec.SessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return removed, err
		}
		removed = append(removed, &Session{
			ID:         rec.SessionID,
			Tenant:     rec.TenantID,
			Filename:   rec.Filename,
			Format:     rec.Format,
			ObjectPath: rec.ObjectPath,
			RowCount:   rec.RowCount,
			CreatedAt:  rec.CreatedAt,
			LastAccess: rec.LastAccess,
		})
	}
	return removed, nil
}
