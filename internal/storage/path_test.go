package storage

import "testing"

func TestBuildDatasetFilePath(t *testing.T) {
	got, err := BuildDatasetFilePath("sess-42", FormatCSV)
	if err != nil {
		t.Fatalf("BuildDatasetFilePath() error = %v", err)
	}
	if got != "sessions/sess-42/dataset.csv" {
		t.Fatalf("BuildDatasetFilePath() = %q", got)
	}
}

func TestBuildDatasetFilePathRejectsBadInput(t *testing.T) {
	if _, err := BuildDatasetFilePath("../escape", FormatCSV); err == nil {
		t.Fatal("expected error for traversal session id")
	}
	if _, err := BuildDatasetFilePath("", FormatCSV); err == nil {
		t.Fatal("expected error for empty session id")
	}
	if _, err := BuildDatasetFilePath("sess-1", DatasetFormat("xlsx")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestFormatForFilename(t *testing.T) {
	if format, err := FormatForFilename("transactions.CSV"); err != nil || format != FormatCSV {
		t.Fatalf("FormatForFilename(csv) = %q, %v", format, err)
	}
	if format, err := FormatForFilename("data.parquet"); err != nil || format != FormatParquet {
		t.Fatalf("FormatForFilename(parquet) = %q, %v", format, err)
	}
	if _, err := FormatForFilename("report.xlsx"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
