// Package duckdb rehydrates stored dataset files through an embedded DuckDB
// instance, so sessions evicted from memory can be rebuilt from object storage.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
	"github.com/Abhi-vish/financial-insights-ai/internal/ingest"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

type Loader struct {
	Store storage.ObjectStore
}

func NewLoader(store storage.ObjectStore) *Loader {
	return &Loader{Store: store}
}

// Load fetches the object at objectPath, scans it with DuckDB and rebuilds
// the typed dataset through the shared inference path.
func (l *Loader) Load(ctx context.Context, objectPath string, format storage.DatasetFormat, opts ingest.Options) (*dataset.Dataset, error) {
	if strings.TrimSpace(objectPath) == "" {
		return nil, fmt.Errorf("object path is required")
	}
	if l.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}

	workDir, err := os.MkdirTemp("", "insights-rehydrate-")
	if err != nil {
		return nil, fmt.Errorf("create rehydrate temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath := filepath.Join(workDir, "dataset."+string(format))
	if err := l.spool(ctx, objectPath, localPath); err != nil {
		return nil, err
	}

	scanSQL, err := buildScanSQL(localPath, format)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, scanSQL)
	if err != nil {
		return nil, fmt.Errorf("scan dataset file: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("scan columns: %w", err)
	}

	records := make([][]string, 0, 256)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if opts.MaxRows > 0 && len(records) >= opts.MaxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ingest.ErrTooManyRows, opts.MaxRows)
		}
		records = append(records, renderValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return ingest.BuildDataset(columns, records, opts)
}

// spool copies the stored object to a local file DuckDB can scan.
func (l *Loader) spool(ctx context.Context, objectPath, localPath string) error {
	reader, err := l.Store.Get(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("get object %q: %w", objectPath, err)
	}
	defer func() { _ = reader.Close() }()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local dataset file %q: %w", localPath, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return fmt.Errorf("write local dataset file %q: %w", localPath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close local dataset file %q: %w", localPath, err)
	}
	return nil
}

func buildScanSQL(localPath string, format storage.DatasetFormat) (string, error) {
	quoted := quoteStringLiteral(localPath)
	switch format {
	case storage.FormatCSV:
		return fmt.Sprintf(`SELECT * FROM read_csv_auto(%s, header=true, all_varchar=true)`, quoted), nil
	case storage.FormatParquet:
		return fmt.Sprintf(`SELECT * FROM read_parquet(%s)`, quoted), nil
	default:
		return "", fmt.Errorf("unsupported dataset format: %q", format)
	}
}

func renderValues(values []any) []string {
	record := make([]string, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case nil:
			record[i] = ""
		case string:
			record[i] = typed
		case []byte:
			record[i] = string(typed)
		case bool:
			record[i] = strconv.FormatBool(typed)
		case int64:
			record[i] = strconv.FormatInt(typed, 10)
		case float64:
			record[i] = strconv.FormatFloat(typed, 'f', -1, 64)
		case time.Time:
			record[i] = typed.UTC().Format("2006-01-02")
		default:
			record[i] = fmt.Sprintf("%v", typed)
		}
	}
	return record
}

func quoteStringLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
