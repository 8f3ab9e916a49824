package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	APIBaseURL  string
	APIKey      string
	Format      string
	Rows        int
	Seed        int64
	HTTPTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:  "http://localhost:8080",
		Format:      "csv",
		Rows:        200,
		Seed:        time.Now().UTC().UnixNano(),
		HTTPTimeout: 60 * time.Second,
	}
}

type Runner struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewRunner(cfg Config, logger *slog.Logger, client *http.Client) (*Runner, error) {
	switch cfg.Format {
	case "csv", "parquet":
	default:
		return nil, fmt.Errorf("unsupported demo format %q: expected csv or parquet", cfg.Format)
	}
	if cfg.Rows <= 0 {
		return nil, fmt.Errorf("row count must be positive")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, client: client, logger: logger}, nil
}

// Run uploads a generated dataset and asks the sample questions against it.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now().UTC().AddDate(0, -3, 0)
	transactions := NewGenerator(r.cfg.Seed, start).Take(r.cfg.Rows)

	var (
		data []byte
		err  error
	)
	if r.cfg.Format == "parquet" {
		data, err = EncodeParquet(transactions)
	} else {
		data, err = EncodeCSV(transactions)
	}
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	sessionID, err := r.upload(ctx, "demo-transactions."+r.cfg.Format, data)
	if err != nil {
		return fmt.Errorf("upload dataset: %w", err)
	}
	r.logger.InfoContext(ctx, "demo dataset uploaded",
		slog.String("session_id", sessionID),
		slog.Int("rows", r.cfg.Rows),
		slog.String("format", r.cfg.Format))

	for _, question := range SampleQuestions(transactions) {
		envelope, err := r.ask(ctx, sessionID, question)
		if err != nil {
			return fmt.Errorf("ask %q: %w", question, err)
		}
		r.logger.InfoContext(ctx, "question answered",
			slog.String("question", question),
			slog.String("query_type", fmt.Sprint(envelope["query_type"])),
			slog.String("confidence", fmt.Sprint(envelope["confidence"])),
			slog.String("answer", fmt.Sprint(envelope["answer"])))
	}
	return nil
}

func (r *Runner) upload(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint("/v1/upload"), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	r.setAuth(req)

	body, status, err := r.do(req)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.SessionID == "" {
		return "", fmt.Errorf("upload response did not include a session id")
	}
	return parsed.SessionID, nil
}

func (r *Runner) ask(ctx context.Context, sessionID, question string) (map[string]any, error) {
	payload, err := json.Marshal(map[string]string{
		"session_id": sessionID,
		"question":   question,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint("/v1/query"), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	r.setAuth(req)

	body, status, err := r.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(body)))
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return envelope, nil
}

func (r *Runner) do(req *http.Request) ([]byte, int, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (r *Runner) endpoint(path string) string {
	return strings.TrimRight(r.cfg.APIBaseURL, "/") + path
}

func (r *Runner) setAuth(req *http.Request) {
	if strings.TrimSpace(r.cfg.APIKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(r.cfg.APIKey))
	}
}
