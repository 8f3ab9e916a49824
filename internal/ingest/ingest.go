// Package ingest turns uploaded tabular files into typed in-memory datasets.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
)

var (
	ErrEmptyDataset = errors.New("dataset has no data rows")
	ErrTooManyRows  = errors.New("dataset exceeds the row limit")
)

type Options struct {
	// MaxRows caps the number of data rows accepted. Zero means no cap.
	MaxRows int
	// SampleValues is how many distinct raw values to keep per column for
	// prompt construction.
	SampleValues int
}

func (o Options) sampleValues() int {
	if o.SampleValues <= 0 {
		return 2
	}
	return o.SampleValues
}

// ReadCSV decodes a CSV stream with a header row into a typed dataset.
func ReadCSV(r io.Reader, opts Options) (*dataset.Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	records := make([][]string, 0, 256)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(records)+2, err)
		}
		if opts.MaxRows > 0 && len(records) >= opts.MaxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, opts.MaxRows)
		}
		records = append(records, record)
	}

	return BuildDataset(header, records, opts)
}

// BuildDataset infers column types from raw string records and produces the
// typed table. All decode paths (CSV, Parquet, DuckDB rehydration) funnel
// through here so typing behaves identically regardless of source format.
func BuildDataset(header []string, records [][]string, opts Options) (*dataset.Dataset, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("header row is required")
	}
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}
	if opts.MaxRows > 0 && len(records) > opts.MaxRows {
		return nil, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, opts.MaxRows)
	}

	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, raw := range header {
		name := normalizeColumnName(raw)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate column name: %q", name)
		}
		seen[name] = true
		names[i] = name
	}

	columns := make([]dataset.Column, len(names))
	for i, name := range names {
		values := columnValues(records, i)
		inferred := inferColumn(values, len(records))
		columns[i] = dataset.Column{
			Name:              name,
			Type:              inferred.columnType,
			Samples:           sampleValues(values, opts.sampleValues()),
			IdentifierPattern: inferred.identifierPattern,
		}
	}
	schema := dataset.Schema{Columns: columns}

	rows := make([]dataset.Row, 0, len(records))
	for rowIdx, record := range records {
		row := make(dataset.Row, len(columns))
		for colIdx, col := range columns {
			raw := ""
			if colIdx < len(record) {
				raw = strings.TrimSpace(record[colIdx])
			}
			value, err := coerce(raw, col.Type)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", rowIdx+2, col.Name, err)
			}
			row[colIdx] = value
		}
		rows = append(rows, row)
	}

	return &dataset.Dataset{Schema: schema, Rows: rows}, nil
}

// normalizeColumnName rewrites a raw header cell into a name query
// expressions can reference: lowercase, with every run of characters outside
// [a-z0-9] collapsed to a single underscore. "Transaction Date" becomes
// "transaction_date". A name starting with a digit gets an underscore prefix.
func normalizeColumnName(raw string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingSep = sb.Len() > 0
			continue
		}
		if pendingSep {
			sb.WriteByte('_')
			pendingSep = false
		}
		sb.WriteRune(r)
	}
	name := sb.String()
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func columnValues(records [][]string, idx int) []string {
	values := make([]string, 0, len(records))
	for _, record := range records {
		if idx >= len(record) {
			values = append(values, "")
			continue
		}
		values = append(values, strings.TrimSpace(record[idx]))
	}
	return values
}

func sampleValues(values []string, limit int) []string {
	samples := make([]string, 0, limit)
	seen := make(map[string]bool, limit)
	for _, value := range values {
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		samples = append(samples, value)
		if len(samples) >= limit {
			break
		}
	}
	return samples
}
