package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// DatasetFormat tags the on-disk encoding of an uploaded file.
type DatasetFormat string

const (
	FormatCSV     DatasetFormat = "csv"
	FormatParquet DatasetFormat = "parquet"
)

// FormatForFilename infers the dataset format from the upload's filename.
func FormatForFilename(name string) (DatasetFormat, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported file extension: %q", path.Ext(name))
	}
}

// BuildDatasetFilePath returns the object key for a session's uploaded file.
// Keys look like sessions/<session-id>/dataset.csv.
func BuildDatasetFilePath(sessionID string, format DatasetFormat) (string, error) {
	if err := validatePathComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	switch format {
	case FormatCSV, FormatParquet:
	default:
		return "", fmt.Errorf("invalid dataset format: %q", format)
	}
	return path.Join("sessions", sessionID, "dataset."+string(format)), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
