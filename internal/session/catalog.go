package session

import (
	"context"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

// CatalogRecord is the durable shape of a session: enough to find the stored
// object and rebuild the dataset after the in-memory copy is gone.
type CatalogRecord struct {
	SessionID  string
	TenantID   string
	Filename   string
	Format     storage.DatasetFormat
	ObjectPath string
	RowCount   int
	Schema     dataset.Schema
	CreatedAt  time.Time
	LastAccess time.Time
}

// Catalog persists session metadata beyond process memory.
type Catalog interface {
	Insert(ctx context.Context, rec CatalogRecord) (CatalogRecord, error)
	Get(ctx context.Context, sessionID string) (CatalogRecord, error)
	TouchLastAccess(ctx context.Context, sessionID string, at time.Time) error
	Delete(ctx context.Context, sessionID string) error
	ListExpired(ctx context.Context, before time.Time) ([]CatalogRecord, error)
}

// RecordOf projects a session into its durable form.
func RecordOf(sess *Session) CatalogRecord {
	rec := CatalogRecord{
		SessionID:  sess.ID,
		TenantID:   sess.Tenant,
		Filename:   sess.Filename,
		Format:     sess.Format,
		ObjectPath: sess.ObjectPath,
		RowCount:   sess.RowCount,
		CreatedAt:  sess.CreatedAt,
		LastAccess: sess.LastAccess,
	}
	if sess.Dataset != nil {
		rec.Schema = sess.Dataset.Schema
	}
	return rec
}
