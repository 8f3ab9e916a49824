package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func completionResponse(content string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(raw)
}

func TestClientGenerate(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(completionResponse("filter(amount > 10)")))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "key-1", Model: "gpt-5"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	content, err := client.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "system"},
		{Role: RoleUser, Content: "user"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if content != "filter(amount > 10)" {
		t.Fatalf("content = %q", content)
	}
	if gotAuth != "Bearer key-1" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotPayload["model"] != "gpt-5" {
		t.Fatalf("payload model = %v", gotPayload["model"])
	}
}

func TestClientGenerateMapsStatusCodes(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}
		_, err = client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
		server.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		var genErr *GenerationError
		if !errors.As(err, &genErr) {
			t.Fatalf("status %d: error type = %T", tc.status, err)
		}
		if genErr.StatusCode != tc.status {
			t.Fatalf("status %d: StatusCode = %d", tc.status, genErr.StatusCode)
		}
		if genErr.Retryable != tc.retryable {
			t.Fatalf("status %d: Retryable = %v, want %v", tc.status, genErr.Retryable, tc.retryable)
		}
	}
}

func TestClientGenerateRejectsEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionResponse("   ")))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}}); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewClient(Config{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestStripMarkdownFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\": 1}\n```":           `{"a": 1}`,
		"```\nfilter(amount > 10)\n```":      "filter(amount > 10)",
		"filter(amount > 10)":                "filter(amount > 10)",
		"```filter(amount > 10)```":          "filter(amount > 10)",
		"  \n```text\nplain answer\n```\n  ": "plain answer",
	}
	for in, want := range cases {
		if got := StripMarkdownFences(in); got != want {
			t.Fatalf("StripMarkdownFences(%q) = %q, want %q", in, got, want)
		}
	}
}

type scriptedGenerator struct {
	results []string
	errs    []error
	calls   int
}

func (s *scriptedGenerator) Generate(_ context.Context, _ []Message) (string, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.results) {
		idx = len(s.results) - 1
	}
	return s.results[idx], s.errs[idx]
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestRetryingRecoversFromRetryableError(t *testing.T) {
	inner := &scriptedGenerator{
		results: []string{"", "ok"},
		errs:    []error{&GenerationError{StatusCode: 503, Retryable: true}, nil},
	}
	r := NewRetrying(inner, 2, time.Millisecond)
	r.sleep = noSleep

	content, err := r.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if content != "ok" {
		t.Fatalf("content = %q", content)
	}
	if inner.calls != 2 {
		t.Fatalf("calls = %d", inner.calls)
	}
}

func TestRetryingStopsOnNonRetryableError(t *testing.T) {
	inner := &scriptedGenerator{
		results: []string{""},
		errs:    []error{&GenerationError{StatusCode: 400, Retryable: false}},
	}
	r := NewRetrying(inner, 3, time.Millisecond)
	r.sleep = noSleep

	if _, err := r.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("calls = %d, want 1", inner.calls)
	}
}

func TestRetryingExhaustsBudget(t *testing.T) {
	inner := &scriptedGenerator{
		results: []string{""},
		errs:    []error{&GenerationError{StatusCode: 500, Retryable: true}},
	}
	r := NewRetrying(inner, 2, time.Millisecond)
	r.sleep = noSleep

	if _, err := r.Generate(context.Background(), []Message{{Role: RoleUser, Content: "q"}}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}
