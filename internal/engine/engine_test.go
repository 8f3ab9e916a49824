package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/answer"
	"github.com/Abhi-vish/financial-insights-ai/internal/classifier"
	"github.com/Abhi-vish/financial-insights-ai/internal/dataset"
	"github.com/Abhi-vish/financial-insights-ai/internal/ingest"
	"github.com/Abhi-vish/financial-insights-ai/internal/llm"
	"github.com/Abhi-vish/financial-insights-ai/internal/sandbox"
	"github.com/Abhi-vish/financial-insights-ai/internal/session"
)

type scriptedGenerator struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, messages []llm.Message) (string, error) {
	idx := g.calls
	g.calls++
	g.prompts = append(g.prompts, messages[len(messages)-1].Content)
	if idx < len(g.errs) && g.errs[idx] != nil {
		return "", g.errs[idx]
	}
	if idx < len(g.replies) {
		return g.replies[idx], nil
	}
	return "", errors.New("no scripted reply")
}

func newTestEngine(t *testing.T, gen llm.Generator) (*Engine, *session.Session) {
	t.Helper()

	header := []string{"transaction_id", "date", "amount", "category"}
	records := [][]string{
		{"T100001", "2026-01-05", "$120.50", "Groceries"},
		{"T100002", "2026-01-06", "$45.00", "Transport"},
		{"T100003", "2026-01-07", "$300.00", "Groceries"},
		{"T100004", "2026-01-08", "$18.25", "Dining"},
	}
	ds, err := ingest.BuildDataset(header, records, ingest.Options{})
	if err != nil {
		t.Fatalf("BuildDataset() error = %v", err)
	}

	sess := &session.Session{
		ID:       "sess-1",
		Filename: "transactions.csv",
		RowCount: ds.RowCount(),
		Dataset:  ds,
		Summary:  dataset.Summarize(ds),
	}
	store := session.NewMemoryStore(time.Hour)
	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	executor := sandbox.New(sandbox.Limits{})
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(store, gen, executor, logger), sess
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func TestAnswerUnknownSession(t *testing.T) {
	eng, _ := newTestEngine(t, &scriptedGenerator{})
	if _, err := eng.Answer(context.Background(), "missing", "summarize my spending"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("Answer() error = %v, want session.ErrSessionNotFound", err)
	}
}

func TestAnswerSummaryPath(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		`{"answer":"You spent the most on Groceries.","insights":{"top_category":"Groceries"},"confidence":"high"}`,
	}}
	eng, _ := newTestEngine(t, gen)

	envelope, err := eng.Answer(context.Background(), "sess-1", "Give me an overview of my spending")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if envelope.QueryType != classifier.QuerySummary {
		t.Fatalf("QueryType = %q", envelope.QueryType)
	}
	if envelope.Confidence != answer.ConfidenceHigh {
		t.Fatalf("Confidence = %q", envelope.Confidence)
	}
	if envelope.Insights["top_category"] != "Groceries" {
		t.Fatalf("Insights = %v", envelope.Insights)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls)
	}
}

func TestAnswerLookupPath(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"filter(transaction_id == \"T100002\") | select(amount)",
	}}
	eng, _ := newTestEngine(t, gen)

	envelope, err := eng.Answer(context.Background(), "sess-1", "What is the amount for T100002?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if envelope.QueryType != classifier.QueryLookup {
		t.Fatalf("QueryType = %q", envelope.QueryType)
	}
	if envelope.Confidence != answer.ConfidenceHigh {
		t.Fatalf("Confidence = %q", envelope.Confidence)
	}
	if !strings.Contains(envelope.Answer, "45") {
		t.Fatalf("Answer = %q, want the T100002 amount", envelope.Answer)
	}
}

func TestAnswerLookupRepairCycle(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"filter(transaction_id = \"T100002\") | select(amount)",
		"```\nfilter(transaction_id == \"T100002\") | select(amount)\n```",
	}}
	eng, _ := newTestEngine(t, gen)

	envelope, err := eng.Answer(context.Background(), "sess-1", "Show transaction T100002")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if gen.calls != 2 {
		t.Fatalf("generator calls = %d, want 2", gen.calls)
	}
	if !strings.Contains(gen.prompts[1], "transaction_id = ") {
		t.Fatalf("repair prompt should quote the rejected code, got %q", gen.prompts[1])
	}
	if envelope.QueryType != classifier.QueryLookup {
		t.Fatalf("QueryType = %q", envelope.QueryType)
	}
	if envelope.Confidence != answer.ConfidenceHigh {
		t.Fatalf("Confidence = %q", envelope.Confidence)
	}
}

func TestAnswerLookupFallsBackToSummary(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"select(no_such_column)",
		"select(still_wrong)",
		`{"answer":"T100002 was a Transport purchase of $45.00.","insights":{},"confidence":"low"}`,
	}}
	eng, _ := newTestEngine(t, gen)

	envelope, err := eng.Answer(context.Background(), "sess-1", "Tell me about T100002")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if gen.calls != 3 {
		t.Fatalf("generator calls = %d, want 3", gen.calls)
	}
	if envelope.QueryType != classifier.QuerySummary {
		t.Fatalf("QueryType = %q", envelope.QueryType)
	}
	if _, ok := envelope.Insights["lookup_fallback"]; !ok {
		t.Fatalf("Insights = %v, want lookup_fallback marker", envelope.Insights)
	}
}

func TestAnswerGenerationFailureDegrades(t *testing.T) {
	boom := &llm.GenerationError{StatusCode: 503, Retryable: true, Err: errors.New("upstream down")}
	gen := &scriptedGenerator{errs: []error{boom}}
	eng, _ := newTestEngine(t, gen)

	envelope, err := eng.Answer(context.Background(), "sess-1", "Give me an overview of my spending")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if envelope.Confidence != answer.ConfidenceNone {
		t.Fatalf("Confidence = %q, want none", envelope.Confidence)
	}
	if envelope.Answer == "" {
		t.Fatal("degraded envelope should carry an explanation")
	}
}

func TestAnswerLookupGroupByAggregate(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"groupby(category) | aggregate(sum(amount)) | sort(sum_amount, desc)",
	}}
	eng, _ := newTestEngine(t, gen)

	envelope, err := eng.Answer(context.Background(), "sess-1", "Which transaction id T100001 category got the most?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if envelope.QueryType != classifier.QueryLookup {
		t.Fatalf("QueryType = %q", envelope.QueryType)
	}
	if !strings.HasPrefix(envelope.Answer, "category: Groceries") {
		t.Fatalf("Answer = %q, want Groceries first", envelope.Answer)
	}
	if envelope.Insights["row_count"] != 3 {
		t.Fatalf("row_count = %v", envelope.Insights["row_count"])
	}
}
