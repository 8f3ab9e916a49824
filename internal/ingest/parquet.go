package ingest

import (
	"fmt"
	"io"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
)

// ReadParquet decodes a flat parquet file into a typed dataset. Cell values
// are rendered back to strings so type inference matches the CSV path.
func ReadParquet(r io.ReaderAt, size int64, opts Options) (*dataset.Dataset, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	fields := file.Schema().Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("parquet file has no columns")
	}
	header := make([]string, len(fields))
	for i, field := range fields {
		header[i] = field.Name()
	}

	records := make([][]string, 0, file.NumRows())
	for _, group := range file.RowGroups() {
		rows := group.Rows()
		buf := make([]parquet.Row, 64)
		for {
			n, readErr := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				if opts.MaxRows > 0 && len(records) >= opts.MaxRows {
					_ = rows.Close()
					return nil, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, opts.MaxRows)
				}
				record := make([]string, len(fields))
				for _, value := range row {
					idx := value.Column()
					if idx < 0 || idx >= len(record) || value.IsNull() {
						continue
					}
					record[idx] = renderParquetValue(value)
				}
				records = append(records, record)
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("read parquet rows: %w", readErr)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close parquet rows: %w", err)
		}
	}

	return BuildDataset(header, records, opts)
}

func renderParquetValue(value parquet.Value) string {
	switch value.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(value.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(value.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(value.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(value.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(value.Double(), 'f', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(value.ByteArray())
	default:
		return value.String()
	}
}
