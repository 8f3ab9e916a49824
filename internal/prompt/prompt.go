// Package prompt renders the model prompts for both answering paths.
package prompt

import (
	"fmt"
	"strings"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
)

// Kind selects the instruction block for a summary question. Lookup questions
// always use KindLookupCode.
type Kind string

const (
	KindSummary    Kind = "summary"
	KindCategory   Kind = "category"
	KindTime       Kind = "time"
	KindComparison Kind = "comparison"
	KindTopItems   Kind = "top_items"
	KindGeneral    Kind = "general"
	KindLookupCode Kind = "lookup_code"
)

type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// KindFor picks the summary instruction block from keywords in the question.
func (b *Builder) KindFor(question string) Kind {
	lowered := strings.ToLower(question)
	switch {
	case containsAny(lowered, "summary", "summarize", "overview", "overall"):
		return KindSummary
	case containsAny(lowered, "compare", "comparison", "versus", " vs ", "difference between"):
		return KindComparison
	case containsAny(lowered, "top ", "most ", "largest", "biggest", "highest", "lowest", "smallest"):
		return KindTopItems
	case containsAny(lowered, "trend", "over time", "month", "week", "daily", "weekly", "monthly", "date"):
		return KindTime
	case containsAny(lowered, "category", "categories"):
		return KindCategory
	default:
		return KindGeneral
	}
}

var summaryInstructions = map[Kind]string{
	KindSummary:    "Write a concise narrative summary of the dataset. Mention totals, date coverage and the dominant categories.",
	KindCategory:   "Focus on the category breakdown. Name the categories that dominate spending and any that stand out as unusual.",
	KindTime:       "Focus on how values change across the date range. Call out growth, decline or seasonal patterns you can support with the statistics.",
	KindComparison: "Compare the groups the question names. Quantify the difference where the statistics allow it.",
	KindTopItems:   "Rank the relevant items and report the leaders with their values.",
	KindGeneral:    "Answer the question directly using only the statistics provided.",
}

// BuildSummary renders the narrative prompt for a summary question. The model
// only ever sees the statistical profile, never raw rows.
func (b *Builder) BuildSummary(question string, summary dataset.Summary) string {
	kind := b.KindFor(question)
	var sb strings.Builder
	sb.WriteString("You are a financial data analyst. A user uploaded a tabular dataset and asked a question about it.\n\n")
	sb.WriteString("Dataset profile:\n")
	sb.WriteString(summary.RenderText())
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	sb.WriteString(summaryInstructions[kind])
	sb.WriteString("\n\nRespond with a single JSON object, no markdown fences, shaped as:\n")
	sb.WriteString(`{"answer": "<2-4 sentence answer>", "insights": {"<label>": "<short finding>"}, "confidence": "high" or "low", "limitations": "<optional caveat>"}` + "\n")
	sb.WriteString("Use \"low\" confidence when the statistics cannot fully support the answer. Do not invent values.\n")
	return sb.String()
}

// BuildLookupCode renders the code-generation prompt for a lookup question.
// The model must emit one expression in the query pipeline language. Each
// column is listed with its type and a sample value or two so filters quote
// identifiers and dates in the shape the dataset actually uses.
func (b *Builder) BuildLookupCode(question string, schema dataset.Schema, summary dataset.Summary) string {
	var sb strings.Builder
	sb.WriteString("You translate questions about a tabular dataset into one expression in a small query pipeline language.\n\n")
	sb.WriteString("Dataset profile:\n")
	sb.WriteString(summary.RenderText())
	sb.WriteString("\nColumns you may reference:\n")
	sb.WriteString(renderColumns(schema))
	sb.WriteString("\n")
	sb.WriteString(grammarHelp)
	fmt.Fprintf(&sb, "\nQuestion: %s\n\n", question)
	sb.WriteString("Respond with exactly one expression on a single line. No explanation, no markdown fences.\n")
	return sb.String()
}

// BuildLookupRepair asks the model to fix a rejected expression. Used once
// before falling back to the summary path.
func (b *Builder) BuildLookupRepair(question, rejected, problem string, schema dataset.Schema) string {
	var sb strings.Builder
	sb.WriteString("Your previous expression was rejected.\n\n")
	fmt.Fprintf(&sb, "Question: %s\n", question)
	fmt.Fprintf(&sb, "Rejected expression: %s\n", rejected)
	fmt.Fprintf(&sb, "Problem: %s\n", problem)
	sb.WriteString("Columns you may reference:\n")
	sb.WriteString(renderColumns(schema))
	sb.WriteString("\n")
	sb.WriteString(grammarHelp)
	sb.WriteString("\nRespond with exactly one corrected expression on a single line. No explanation, no markdown fences.\n")
	return sb.String()
}

const grammarHelp = `The language is a pipeline of stages joined with "|":
  filter(<condition>)        keep rows where the condition holds
  select(<col>[, <col>...])  keep only the named columns
  groupby(<col>[, <col>...]) group rows for aggregation
  aggregate(<agg>[, ...])    compute sum(col), avg(col), min(col), max(col), count()
  sort(<col>[, asc|desc])    order rows; aggregate outputs are named sum_amount, count, ...
  limit(<n>)                 keep the first n rows

Conditions combine comparisons (==, !=, >, >=, <, <=) with and, or, not,
plus contains(col, "text") for substring matches. String and date literals
use double quotes, dates as "2006-01-02".

Examples:
  filter(transaction_id == "T100008") | select(amount)
  filter(category == "Groceries") | aggregate(sum(amount))
  groupby(category) | aggregate(sum(amount)) | sort(sum_amount, desc) | limit(5)
`

// renderColumns lists each column with its type and up to two sample values.
func renderColumns(schema dataset.Schema) string {
	var sb strings.Builder
	for _, col := range schema.Columns {
		fmt.Fprintf(&sb, "  %s (%s)", col.Name, col.Type)
		samples := col.Samples
		if len(samples) > 2 {
			samples = samples[:2]
		}
		if len(samples) > 0 {
			sb.WriteString(" e.g. ")
			for i, sample := range samples {
				if i > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "%q", sample)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func containsAny(value string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(value, keyword) {
			return true
		}
	}
	return false
}
