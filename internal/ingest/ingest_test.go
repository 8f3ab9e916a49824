package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
)

const sampleCSV = `transaction_id,date,amount,category,description
T100001,2024-03-01,"$1,200.50",Groceries,Weekly shop at the market
T100002,2024-03-02,$40.00,Transport,Monthly metro pass top up
T100003,2024-03-05,($15.25),Groceries,Returned items refund
T100004,2024-03-09,$7.99,Entertainment,Streaming subscription renewal
`

func TestReadCSVInfersColumnTypes(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sampleCSV), Options{})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if ds.RowCount() != 4 {
		t.Fatalf("RowCount() = %d", ds.RowCount())
	}

	wantTypes := map[string]dataset.ColumnType{
		"transaction_id": dataset.TypeIdentifier,
		"date":           dataset.TypeDate,
		"amount":         dataset.TypeNumeric,
		"category":       dataset.TypeCategorical,
		"description":    dataset.TypeText,
	}
	for name, want := range wantTypes {
		col, ok := ds.Schema.Column(name)
		if !ok {
			t.Fatalf("missing column %q", name)
		}
		if col.Type != want {
			t.Fatalf("column %q type = %q, want %q", name, col.Type, want)
		}
	}

	id, _ := ds.Schema.Column("transaction_id")
	if id.IdentifierPattern == "" {
		t.Fatal("identifier column should carry a pattern")
	}
	if len(id.Samples) != 2 || id.Samples[0] != "T100001" {
		t.Fatalf("identifier samples = %v", id.Samples)
	}
}

func TestReadCSVCleansCurrencyValues(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(sampleCSV), Options{})
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	v, _ := ds.Cell(ds.Rows[0], "amount")
	if v.Number != 1200.50 {
		t.Fatalf("amount[0] = %v, want 1200.50", v.Number)
	}
	v, _ = ds.Cell(ds.Rows[2], "amount")
	if v.Number != -15.25 {
		t.Fatalf("amount[2] = %v, want -15.25 for parenthesized value", v.Number)
	}
}

func TestReadCSVEnforcesRowLimit(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(sampleCSV), Options{MaxRows: 2})
	if !errors.Is(err, ErrTooManyRows) {
		t.Fatalf("ReadCSV() error = %v, want ErrTooManyRows", err)
	}
}

func TestReadCSVRejectsEmptyData(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader(""), Options{}); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("empty stream error = %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("a,b,c\n"), Options{}); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("header-only error = %v", err)
	}
}

func TestBuildDatasetNormalizesHeaderNames(t *testing.T) {
	ds, err := BuildDataset(
		[]string{"Transaction Date", "Amount ($)", "Merchant-Name", "2024 Total"},
		[][]string{{"2024-03-01", "10.50", "Walmart", "99"}},
		Options{},
	)
	if err != nil {
		t.Fatalf("BuildDataset() error = %v", err)
	}
	got := ds.Schema.ColumnNames()
	want := []string{"transaction_date", "amount", "merchant_name", "_2024_total"}
	if len(got) != len(want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildDatasetRejectsHeadersCollidingAfterNormalization(t *testing.T) {
	_, err := BuildDataset(
		[]string{"Amount", "amount ($)"},
		[][]string{{"1", "2"}},
		Options{},
	)
	if err == nil {
		t.Fatal("expected duplicate column error")
	}
}

func TestBuildDatasetRejectsDuplicateColumns(t *testing.T) {
	_, err := BuildDataset([]string{"amount", "amount"}, [][]string{{"1", "2"}}, Options{})
	if err == nil {
		t.Fatal("expected duplicate column error")
	}
}

func TestBuildDatasetHandlesMissingCells(t *testing.T) {
	ds, err := BuildDataset(
		[]string{"id", "amount"},
		[][]string{
			{"T100001", "10"},
			{"T100002"},
			{"T100003", ""},
		},
		Options{},
	)
	if err != nil {
		t.Fatalf("BuildDataset() error = %v", err)
	}
	v, _ := ds.Cell(ds.Rows[1], "amount")
	if !v.IsNull() {
		t.Fatalf("short row cell = %+v, want null", v)
	}
	v, _ = ds.Cell(ds.Rows[2], "amount")
	if !v.IsNull() {
		t.Fatalf("empty cell = %+v, want null", v)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"42", 42},
		{"$1,234.56", 1234.56},
		{"€ 99", 99},
		{"(42.00)", -42},
		{"-3.5", -3.5},
	}
	for _, tc := range cases {
		got, err := parseNumber(tc.in)
		if err != nil {
			t.Fatalf("parseNumber(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseNumber(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := parseNumber("not a number"); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

type parquetTransaction struct {
	TransactionID string  `parquet:"transaction_id"`
	Date          string  `parquet:"date"`
	Amount        float64 `parquet:"amount"`
	Category      string  `parquet:"category"`
}

func TestReadParquet(t *testing.T) {
	rows := []parquetTransaction{
		{TransactionID: "T100001", Date: "2024-03-01", Amount: 120.50, Category: "Groceries"},
		{TransactionID: "T100002", Date: "2024-03-02", Amount: 40, Category: "Transport"},
		{TransactionID: "T100003", Date: "2024-03-05", Amount: 15.25, Category: "Groceries"},
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetTransaction](buf)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("write parquet rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}

	ds, err := ReadParquet(bytes.NewReader(buf.Bytes()), int64(buf.Len()), Options{})
	if err != nil {
		t.Fatalf("ReadParquet() error = %v", err)
	}
	if ds.RowCount() != 3 {
		t.Fatalf("RowCount() = %d", ds.RowCount())
	}

	amount, ok := ds.Schema.Column("amount")
	if !ok || amount.Type != dataset.TypeNumeric {
		t.Fatalf("amount column = %+v, %v", amount, ok)
	}
	date, ok := ds.Schema.Column("date")
	if !ok || date.Type != dataset.TypeDate {
		t.Fatalf("date column = %+v, %v", date, ok)
	}

	v, _ := ds.Cell(ds.Rows[0], "amount")
	if v.Number != 120.50 {
		t.Fatalf("amount[0] = %v", v.Number)
	}
}
