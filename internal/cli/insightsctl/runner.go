// Package insightsctl implements the command line client for the insights
// API: upload a dataset, ask questions, inspect and delete sessions.
package insightsctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("insightsctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "insights API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	base := strings.TrimRight(*baseURL, "/")
	command := strings.TrimSpace(fs.Arg(0))

	var (
		req *http.Request
		err error
	)
	switch command {
	case "health":
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/health", nil)
	case "ready":
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/ready", nil)
	case "upload":
		if fs.NArg() != 2 {
			_, _ = fmt.Fprintln(stderr, "usage: insightsctl upload <file.csv|file.parquet>")
			return 2
		}
		req, err = newUploadRequest(ctx, base, fs.Arg(1))
	case "ask":
		if fs.NArg() != 3 {
			_, _ = fmt.Fprintln(stderr, "usage: insightsctl ask <session-id> <question>")
			return 2
		}
		req, err = newAskRequest(ctx, base, fs.Arg(1), fs.Arg(2))
	case "session":
		if fs.NArg() != 2 {
			_, _ = fmt.Fprintln(stderr, "usage: insightsctl session <session-id>")
			return 2
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/sessions/"+fs.Arg(1), nil)
	case "insights":
		if fs.NArg() != 2 {
			_, _ = fmt.Fprintln(stderr, "usage: insightsctl insights <session-id>")
			return 2
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/sessions/"+fs.Arg(1)+"/insights", nil)
	case "delete":
		if fs.NArg() != 2 {
			_, _ = fmt.Fprintln(stderr, "usage: insightsctl delete <session-id>")
			return 2
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodDelete, base+"/v1/sessions/"+fs.Arg(1), nil)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request build failed: %v\n", err)
		return 1
	}

	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(*apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(*apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "response read failed: %v\n", err)
		return 1
	}

	if resp.StatusCode >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		return 1
	}

	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(stdout, string(body))
	}
	return 0
}

func newUploadRequest(ctx context.Context, base, path string) (*http.Request, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func newAskRequest(ctx context.Context, base, sessionID, question string) (*http.Request, error) {
	payload, err := json.Marshal(map[string]string{
		"session_id": sessionID,
		"question":   question,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/query", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: insightsctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                      GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                       GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  upload <file>               POST /v1/upload")
	_, _ = fmt.Fprintln(w, "  ask <session-id> <question> POST /v1/query")
	_, _ = fmt.Fprintln(w, "  session <session-id>        GET /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  insights <session-id>       GET /v1/sessions/{id}/insights")
	_, _ = fmt.Fprintln(w, "  delete <session-id>         DELETE /v1/sessions/{id}")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
