package dataset

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// NumericStats holds aggregate statistics for a numeric column.
type NumericStats struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// CategoryCount pairs a categorical value with its row frequency.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnSummary describes one column's distribution.
type ColumnSummary struct {
	Name      string          `json:"name"`
	Type      ColumnType      `json:"type"`
	Numeric   *NumericStats   `json:"numeric,omitempty"`
	Distinct  int             `json:"distinct,omitempty"`
	TopValues []CategoryCount `json:"top_values,omitempty"`
	EarliestDate string       `json:"earliest_date,omitempty"`
	LatestDate   string       `json:"latest_date,omitempty"`
}

// Summary is the dataset profile handed to prompt construction and the
// insights endpoint.
type Summary struct {
	RowCount int             `json:"row_count"`
	Columns  []ColumnSummary `json:"columns"`
}

const topValueLimit = 5

// Summarize profiles every column in one pass over the rows.
func Summarize(ds *Dataset) Summary {
	summary := Summary{RowCount: len(ds.Rows)}
	for idx, col := range ds.Schema.Columns {
		cs := ColumnSummary{Name: col.Name, Type: col.Type}
		switch col.Type {
		case TypeNumeric:
			cs.Numeric = summarizeNumeric(ds.Rows, idx)
		case TypeCategorical, TypeIdentifier:
			distinct, top := summarizeCategorical(ds.Rows, idx)
			cs.Distinct = distinct
			if col.Type == TypeCategorical {
				cs.TopValues = top
			}
		case TypeDate:
			earliest, latest := summarizeDates(ds.Rows, idx)
			cs.EarliestDate = earliest
			cs.LatestDate = latest
		}
		summary.Columns = append(summary.Columns, cs)
	}
	return summary
}

func summarizeNumeric(rows []Row, idx int) *NumericStats {
	stats := &NumericStats{}
	for _, row := range rows {
		if idx >= len(row) || row[idx].Kind != KindNumber {
			continue
		}
		v := row[idx].Number
		if stats.Count == 0 {
			stats.Min = v
			stats.Max = v
		} else {
			if v < stats.Min {
				stats.Min = v
			}
			if v > stats.Max {
				stats.Max = v
			}
		}
		stats.Sum += v
		stats.Count++
	}
	if stats.Count > 0 {
		stats.Mean = stats.Sum / float64(stats.Count)
	}
	return stats
}

func summarizeCategorical(rows []Row, idx int) (int, []CategoryCount) {
	counts := make(map[string]int)
	for _, row := range rows {
		if idx >= len(row) || row[idx].IsNull() {
			continue
		}
		counts[row[idx].String()]++
	}
	top := make([]CategoryCount, 0, len(counts))
	for value, count := range counts {
		top = append(top, CategoryCount{Value: value, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Value < top[j].Value
	})
	if len(top) > topValueLimit {
		top = top[:topValueLimit]
	}
	return len(counts), top
}

func summarizeDates(rows []Row, idx int) (string, string) {
	var earliest, latest time.Time
	seen := false
	for _, row := range rows {
		if idx >= len(row) || row[idx].Kind != KindTime {
			continue
		}
		t := row[idx].Time
		if !seen {
			earliest, latest = t, t
			seen = true
			continue
		}
		if t.Before(earliest) {
			earliest = t
		}
		if t.After(latest) {
			latest = t
		}
	}
	if !seen {
		return "", ""
	}
	return earliest.Format("2006-01-02"), latest.Format("2006-01-02")
}

// RenderText formats the summary as the compact plain-text block embedded in
// model prompts.
func (s Summary) RenderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rows: %d\n", s.RowCount)
	b.WriteString("Columns:\n")
	for _, col := range s.Columns {
		fmt.Fprintf(&b, "- %s (%s)", col.Name, col.Type)
		switch {
		case col.Numeric != nil && col.Numeric.Count > 0:
			fmt.Fprintf(&b, ": min=%s max=%s mean=%s sum=%s",
				formatNumber(col.Numeric.Min), formatNumber(col.Numeric.Max),
				formatNumber(col.Numeric.Mean), formatNumber(col.Numeric.Sum))
		case len(col.TopValues) > 0:
			parts := make([]string, 0, len(col.TopValues))
			for _, tv := range col.TopValues {
				parts = append(parts, fmt.Sprintf("%s (%d)", tv.Value, tv.Count))
			}
			fmt.Fprintf(&b, ": %d distinct, top: %s", col.Distinct, strings.Join(parts, ", "))
		case col.Type == TypeIdentifier:
			fmt.Fprintf(&b, ": %d distinct", col.Distinct)
		case col.EarliestDate != "":
			fmt.Fprintf(&b, ": %s to %s", col.EarliestDate, col.LatestDate)
		}
		b.WriteString("\n")
	}
	return b.String()
}
