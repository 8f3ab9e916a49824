// Package classifier routes free-text questions to the summary or lookup
// answering path.
package classifier

import (
	"regexp"
	"strings"

	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
)

type QueryType string

const (
	QuerySummary QueryType = "summary"
	QueryLookup  QueryType = "lookup"
)

// Signal names which rule decided the routing, in the order rules are tried.
type Signal string

const (
	SignalIdentifier     Signal = "identifier"
	SignalLookupKeyword  Signal = "lookup_keyword"
	SignalSummaryKeyword Signal = "summary_keyword"
	SignalDefault        Signal = "default"
)

type Decision struct {
	Type    QueryType
	Signal  Signal
	Matched string
}

// tokenPattern finds candidate record keys embedded in a question, such as
// T100008 or INV-2024001.
var tokenPattern = regexp.MustCompile(`\b[A-Za-z]{1,4}-?\d{3,}\b`)

var summaryKeywords = []string{
	"average",
	"mean",
	"total",
	"sum of",
	"trend",
	"over time",
	"summary",
	"summarize",
	"overview",
	"overall",
	"how many",
	"distribution",
	"breakdown",
	"compare",
	"comparison",
	"top ",
	"most common",
	"highest spending",
	"per category",
	"by category",
	"by month",
}

var lookupKeywords = []string{
	"amount for",
	"value of",
	"value for",
	"look up",
	"lookup",
	"find the",
	"details of",
	"details for",
	"specific",
	"which row",
	"record for",
	"transaction id",
}

type Classifier struct {
	summaryKeywords []string
	lookupKeywords  []string
}

func New() *Classifier {
	return &Classifier{
		summaryKeywords: summaryKeywords,
		lookupKeywords:  lookupKeywords,
	}
}

// Classify applies the routing rules in fixed order: an identifier token wins,
// then a lookup-intent keyword, then the summary default. Summary keywords
// only label the signal; they never override a lookup indicator. The same
// question against the same schema always routes the same way.
func (c *Classifier) Classify(question string, schema dataset.Schema) Decision {
	if token, ok := c.findIdentifierToken(question, schema); ok {
		return Decision{Type: QueryLookup, Signal: SignalIdentifier, Matched: token}
	}

	lowered := strings.ToLower(question)
	for _, keyword := range c.lookupKeywords {
		if strings.Contains(lowered, keyword) {
			return Decision{Type: QueryLookup, Signal: SignalLookupKeyword, Matched: keyword}
		}
	}
	for _, keyword := range c.summaryKeywords {
		if strings.Contains(lowered, keyword) {
			return Decision{Type: QuerySummary, Signal: SignalSummaryKeyword, Matched: keyword}
		}
	}
	return Decision{Type: QuerySummary, Signal: SignalDefault}
}

// findIdentifierToken extracts key-shaped tokens from the question. When the
// dataset declares identifier columns their patterns narrow the match, so a
// bare year like 2024 in a schema with T-prefixed keys does not force a
// lookup.
func (c *Classifier) findIdentifierToken(question string, schema dataset.Schema) (string, bool) {
	tokens := tokenPattern.FindAllString(question, -1)
	if len(tokens) == 0 {
		return "", false
	}

	idColumns := schema.IdentifierColumns()
	if len(idColumns) == 0 {
		return tokens[0], true
	}
	for _, col := range idColumns {
		pattern, err := regexp.Compile(col.IdentifierPattern)
		if err != nil {
			continue
		}
		for _, token := range tokens {
			if pattern.MatchString(token) {
				return token, true
			}
		}
	}
	return "", false
}
