package dataset

import (
	"strings"
	"testing"
	"time"
)

func sampleDataset() *Dataset {
	schema := Schema{Columns: []Column{
		{Name: "transaction_id", Type: TypeIdentifier, IdentifierPattern: `^[A-Z]\d+$`},
		{Name: "date", Type: TypeDate},
		{Name: "amount", Type: TypeNumeric},
		{Name: "category", Type: TypeCategorical},
	}}
	day := func(d int) Value {
		return Timestamp(time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC))
	}
	return &Dataset{
		Schema: schema,
		Rows: []Row{
			{Text("T100001"), day(1), Number(120.50), Text("Groceries")},
			{Text("T100002"), day(2), Number(40), Text("Transport")},
			{Text("T100003"), day(5), Number(15.25), Text("Groceries")},
		},
	}
}

func TestSchemaLookups(t *testing.T) {
	ds := sampleDataset()
	col, ok := ds.Schema.Column("amount")
	if !ok || col.Type != TypeNumeric {
		t.Fatalf("Column(amount) = %+v, %v", col, ok)
	}
	if _, ok := ds.Schema.Column("Amount"); ok {
		t.Fatal("column lookup should be case-sensitive")
	}
	ids := ds.Schema.IdentifierColumns()
	if len(ids) != 1 || ids[0].Name != "transaction_id" {
		t.Fatalf("IdentifierColumns() = %+v", ids)
	}
}

func TestCell(t *testing.T) {
	ds := sampleDataset()
	v, ok := ds.Cell(ds.Rows[0], "amount")
	if !ok || v.Number != 120.50 {
		t.Fatalf("Cell(amount) = %+v, %v", v, ok)
	}
	if _, ok := ds.Cell(ds.Rows[0], "missing"); ok {
		t.Fatal("expected false for unknown column")
	}
}

func TestValueNativeAndString(t *testing.T) {
	if got := Number(42).String(); got != "42" {
		t.Fatalf("Number(42).String() = %q", got)
	}
	if got := Number(3.14159).String(); got != "3.14" {
		t.Fatalf("Number(3.14159).String() = %q", got)
	}
	if got := Null().Native(); got != nil {
		t.Fatalf("Null().Native() = %v", got)
	}
	ts := Timestamp(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if got := ts.Native(); got != "2024-03-01" {
		t.Fatalf("Timestamp.Native() = %v", got)
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleDataset())
	if summary.RowCount != 3 {
		t.Fatalf("RowCount = %d", summary.RowCount)
	}

	byName := make(map[string]ColumnSummary)
	for _, col := range summary.Columns {
		byName[col.Name] = col
	}

	amount := byName["amount"]
	if amount.Numeric == nil {
		t.Fatal("expected numeric stats for amount")
	}
	if amount.Numeric.Count != 3 || amount.Numeric.Min != 15.25 || amount.Numeric.Max != 120.50 {
		t.Fatalf("amount stats = %+v", amount.Numeric)
	}

	category := byName["category"]
	if category.Distinct != 2 {
		t.Fatalf("category distinct = %d", category.Distinct)
	}
	if len(category.TopValues) == 0 || category.TopValues[0].Value != "Groceries" || category.TopValues[0].Count != 2 {
		t.Fatalf("category top values = %+v", category.TopValues)
	}

	date := byName["date"]
	if date.EarliestDate != "2024-03-01" || date.LatestDate != "2024-03-05" {
		t.Fatalf("date range = %s to %s", date.EarliestDate, date.LatestDate)
	}

	id := byName["transaction_id"]
	if id.Distinct != 3 {
		t.Fatalf("identifier distinct = %d", id.Distinct)
	}
	if len(id.TopValues) != 0 {
		t.Fatalf("identifier columns should not list top values: %+v", id.TopValues)
	}
}

func TestSummaryRenderText(t *testing.T) {
	text := Summarize(sampleDataset()).RenderText()
	for _, want := range []string{
		"Rows: 3",
		"amount (numeric)",
		"min=15.25",
		"category (categorical)",
		"Groceries (2)",
		"2024-03-01 to 2024-03-05",
		"transaction_id (identifier): 3 distinct",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered summary missing %q:\n%s", want, text)
		}
	}
}
