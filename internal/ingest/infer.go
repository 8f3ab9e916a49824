package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
)

// typeThreshold is the share of non-empty values that must parse as a type
// before the whole column is given that type.
const typeThreshold = 0.9

// identifierSource matches structured record keys such as T100001 or INV-2024001.
const identifierSource = `^[A-Za-z]{1,4}-?\d{3,}$`

var identifierPattern = regexp.MustCompile(identifierSource)

// categoricalMaxDistinct caps how many distinct values a categorical column
// may have relative to the row count.
func categoricalMaxDistinct(rowCount int) int {
	limit := rowCount / 20
	if limit < 10 {
		limit = 10
	}
	return limit
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02 Jan 2006",
	"Jan 2, 2006",
}

type inference struct {
	columnType        dataset.ColumnType
	identifierPattern string
}

func inferColumn(values []string, rowCount int) inference {
	nonEmpty := 0
	dateHits := 0
	numberHits := 0
	identifierHits := 0
	distinct := make(map[string]bool)

	for _, value := range values {
		if value == "" {
			continue
		}
		nonEmpty++
		distinct[value] = true
		if _, err := parseDate(value); err == nil {
			dateHits++
		}
		if _, err := parseNumber(value); err == nil {
			numberHits++
		}
		if identifierPattern.MatchString(value) {
			identifierHits++
		}
	}

	if nonEmpty == 0 {
		return inference{columnType: dataset.TypeText}
	}

	ratio := func(hits int) float64 { return float64(hits) / float64(nonEmpty) }

	// Identifier columns are near-unique structured keys, checked first so
	// they never fall through to categorical or text.
	if ratio(identifierHits) >= typeThreshold && float64(len(distinct)) >= 0.95*float64(nonEmpty) {
		return inference{columnType: dataset.TypeIdentifier, identifierPattern: identifierSource}
	}
	if ratio(dateHits) >= typeThreshold {
		return inference{columnType: dataset.TypeDate}
	}
	if ratio(numberHits) >= typeThreshold {
		return inference{columnType: dataset.TypeNumeric}
	}
	// Near-unique string columns are free text, not categories.
	if len(distinct) <= categoricalMaxDistinct(rowCount) && float64(len(distinct)) < 0.95*float64(nonEmpty) {
		return inference{columnType: dataset.TypeCategorical}
	}
	return inference{columnType: dataset.TypeText}
}

func coerce(raw string, columnType dataset.ColumnType) (dataset.Value, error) {
	if raw == "" {
		return dataset.Null(), nil
	}
	switch columnType {
	case dataset.TypeNumeric:
		v, err := parseNumber(raw)
		if err != nil {
			return dataset.Null(), nil
		}
		return dataset.Number(v), nil
	case dataset.TypeDate:
		t, err := parseDate(raw)
		if err != nil {
			return dataset.Null(), nil
		}
		return dataset.Timestamp(t), nil
	case dataset.TypeIdentifier, dataset.TypeCategorical, dataset.TypeText:
		return dataset.Text(raw), nil
	default:
		return dataset.Null(), fmt.Errorf("unknown column type: %q", columnType)
	}
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("no date layout matched %q", value)
}

// parseNumber accepts plain numbers plus the currency forms spreadsheets
// export: "$1,234.56", "€ 99", "(42.00)" for negatives.
func parseNumber(value string) (float64, error) {
	cleaned := strings.TrimSpace(value)
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = strings.TrimSpace(strings.TrimLeft(cleaned, "$€£₹"))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty numeric value")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if negative {
		v = -v
	}
	return v, nil
}
