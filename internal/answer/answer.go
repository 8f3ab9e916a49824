// Package answer shapes everything the service returns into one envelope.
package answer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Abhi-vish/financial-insights-ai/internal/classifier"
	"github.com/Abhi-vish/financial-insights-ai/internal/sandbox"
)

type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
	ConfidenceNone Confidence = "none"
)

type Execution struct {
	ElapsedMS int64 `json:"elapsed_ms"`
	Truncated bool  `json:"truncated"`
}

// Envelope is the uniform answer shape for both query paths, including
// degraded outcomes.
type Envelope struct {
	Answer     string               `json:"answer"`
	QueryType  classifier.QueryType `json:"query_type"`
	Confidence Confidence           `json:"confidence"`
	Insights   map[string]any       `json:"insights"`
	Execution  Execution            `json:"execution"`
}

// summaryResponse is the JSON shape the summary prompt asks the model for.
type summaryResponse struct {
	Answer      string         `json:"answer"`
	Insights    map[string]any `json:"insights"`
	Confidence  string         `json:"confidence"`
	Limitations string         `json:"limitations"`
}

// FromSummaryResponse parses model output fail-soft: when the response is not
// the requested JSON shape, the raw text becomes the answer at low
// confidence instead of surfacing an error.
func FromSummaryResponse(raw string) Envelope {
	envelope := Envelope{
		QueryType: classifier.QuerySummary,
		Insights:  map[string]any{},
	}

	var parsed summaryResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil || strings.TrimSpace(parsed.Answer) == "" {
		envelope.Answer = strings.TrimSpace(raw)
		envelope.Confidence = ConfidenceLow
		return envelope
	}

	envelope.Answer = strings.TrimSpace(parsed.Answer)
	for label, finding := range parsed.Insights {
		envelope.Insights[label] = finding
	}
	if strings.TrimSpace(parsed.Limitations) != "" {
		envelope.Insights["limitations"] = strings.TrimSpace(parsed.Limitations)
	}
	switch strings.ToLower(strings.TrimSpace(parsed.Confidence)) {
	case "high":
		envelope.Confidence = ConfidenceHigh
	default:
		envelope.Confidence = ConfidenceLow
	}
	return envelope
}

// displayRowLimit caps how many rows a lookup answer renders as text.
const displayRowLimit = 10

// FromLookupResult renders a sandbox result into the envelope. Values come
// verbatim from execution, never from the model.
func FromLookupResult(result sandbox.Result) Envelope {
	envelope := Envelope{
		QueryType:  classifier.QueryLookup,
		Confidence: ConfidenceHigh,
		Insights:   map[string]any{"row_count": len(result.Rows)},
		Execution: Execution{
			ElapsedMS: result.Elapsed.Milliseconds(),
			Truncated: result.Truncated,
		},
	}

	switch {
	case len(result.Rows) == 0:
		envelope.Answer = "No matching rows were found."
		envelope.Confidence = ConfidenceLow
	case len(result.Rows) == 1 && len(result.Columns) == 1:
		envelope.Answer = fmt.Sprintf("%s: %s", result.Columns[0], result.Rows[0][0].String())
	default:
		envelope.Answer = renderGrid(result)
	}
	if result.Truncated {
		envelope.Answer += fmt.Sprintf("\n(result clipped to the first %d rows)", len(result.Rows))
	}
	return envelope
}

func renderGrid(result sandbox.Result) string {
	var sb strings.Builder
	shown := len(result.Rows)
	if shown > displayRowLimit {
		shown = displayRowLimit
	}
	for r := 0; r < shown; r++ {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for c, col := range result.Columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			value := ""
			if c < len(result.Rows[r]) {
				value = result.Rows[r][c].String()
			}
			fmt.Fprintf(&sb, "%s: %s", col, value)
		}
	}
	if len(result.Rows) > shown {
		fmt.Fprintf(&sb, "\n... and %d more rows", len(result.Rows)-shown)
	}
	return sb.String()
}

// Degraded builds the no-value envelope used when lookup execution fails.
func Degraded(queryType classifier.QueryType, reason string, elapsedMS int64) Envelope {
	return Envelope{
		Answer:     reason,
		QueryType:  queryType,
		Confidence: ConfidenceNone,
		Insights:   map[string]any{},
		Execution:  Execution{ElapsedMS: elapsedMS},
	}
}

// extractJSON pulls the outermost JSON object out of chatty model output.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start < 0 || end <= start {
		return trimmed
	}
	return trimmed[start : end+1]
}
