// Package postgres persists session metadata so uploads survive process
// restarts and in-memory eviction. The dataset bytes themselves live in
// object storage; the catalog records where to find them and how the
// columns were typed.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/session"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) HealthCheck(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping catalog db: %w", err)
	}
	return nil
}

func (c *Catalog) Insert(ctx context.Context, rec session.CatalogRecord) (session.CatalogRecord, error) {
	schemaJSON, err := json.Marshal(rec.Schema)
	if err != nil {
		return session.CatalogRecord{}, fmt.Errorf("encode session schema: %w", err)
	}

	query := `
INSERT INTO session_record (session_id, tenant_id, filename, format, object_path, row_count, schema, last_access)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at`
	if err := c.db.QueryRowContext(ctx, query,
		rec.SessionID,
		rec.TenantID,
		rec.Filename,
		string(rec.Format),
		rec.ObjectPath,
		rec.RowCount,
		schemaJSON,
		rec.LastAccess,
	).Scan(&rec.CreatedAt); err != nil {
		return session.CatalogRecord{}, fmt.Errorf("insert session record: %w", err)
	}
	return rec, nil
}

func (c *Catalog) Get(ctx context.Context, sessionID string) (session.CatalogRecord, error) {
	query := `
SELECT session_id, tenant_id, filename, format, object_path, row_count, schema, created_at, last_access
FROM session_record
WHERE session_id = $1`

	rec, err := scanRecord(c.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.CatalogRecord{}, session.ErrSessionNotFound
		}
		return session.CatalogRecord{}, fmt.Errorf("get session record: %w", err)
	}
	return rec, nil
}

func (c *Catalog) TouchLastAccess(ctx context.Context, sessionID string, at time.Time) error {
	query := `
UPDATE session_record
SET last_access = $2
WHERE session_id = $1`

	res, err := c.db.ExecContext(ctx, query, sessionID, at)
	if err != nil {
		return fmt.Errorf("touch session record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch session record: %w", err)
	}
	if affected == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (c *Catalog) Delete(ctx context.Context, sessionID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM session_record WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session record: %w", err)
	}
	if affected == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

// ListExpired returns sessions whose last access predates the cutoff,
// oldest first.
func (c *Catalog) ListExpired(ctx context.Context, before time.Time) ([]session.CatalogRecord, error) {
	query := `
SELECT session_id, tenant_id, filename, format, object_path, row_count, schema, created_at, last_access
FROM session_record
WHERE last_access < $1
ORDER BY last_access`

	rows, err := c.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []session.CatalogRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list expired sessions: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (session.CatalogRecord, error) {
	var (
		rec        session.CatalogRecord
		format     string
		schemaJSON []byte
	)
	if err := row.Scan(
		&rec.SessionID,
		&rec.TenantID,
		&rec.Filename,
		&format,
		&rec.ObjectPath,
		&rec.RowCount,
		&schemaJSON,
		&rec.CreatedAt,
		&rec.LastAccess,
	); err != nil {
		return session.CatalogRecord{}, err
	}
	rec.Format = storage.DatasetFormat(format)
	if len(schemaJSON) > 0 {
		if err := json.Unmarshal(schemaJSON, &rec.Schema); err != nil {
			return session.CatalogRecord{}, fmt.Errorf("decode session schema: %w", err)
		}
	}
	return rec, nil
}
