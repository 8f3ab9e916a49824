package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/answer"
	"github.com/Abhi-vish/financial-insights-ai/internal/auth"
	"github.com/Abhi-vish/financial-insights-ai/internal/classifier"
	"github.com/Abhi-vish/financial-insights-ai/internal/config"
	"github.com/Abhi-vish/financial-insights-ai/internal/session"
	"github.com/Abhi-vish/financial-insights-ai/internal/storage"
)

const sampleCSV = "transaction_id,date,amount,category\n" +
	"T100001,2026-01-05,$120.50,Groceries\n" +
	"T100002,2026-01-06,$45.00,Transport\n"

type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}}
}

func (m *memoryObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjectStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

type fakeEngine struct {
	envelope answer.Envelope
	err      error
	lastID   string
	lastQ    string
}

func (f *fakeEngine) Answer(_ context.Context, sessionID, question string) (answer.Envelope, error) {
	f.lastID = sessionID
	f.lastQ = question
	if f.err != nil {
		return answer.Envelope{}, f.err
	}
	return f.envelope, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("insights-api-test", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func newTestHandler(t *testing.T, cfg config.Config, engine QueryEngine) (http.Handler, session.Store, *memoryObjectStore) {
	t.Helper()
	sessions := session.NewMemoryStore(time.Hour)
	objects := newMemoryObjectStore()
	handler := NewHandler(cfg, Dependencies{
		Sessions:    sessions,
		ObjectStore: objects,
		Engine:      engine,
	})
	return handler, sessions, objects
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t, testConfig(t), &fakeEngine{})
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestReadyEndpointReportsFailures(t *testing.T) {
	cfg := testConfig(t)
	handler := NewHandler(cfg, Dependencies{
		Readiness: func(context.Context) error { return errors.New("catalog unreachable") },
		Sessions:  session.NewMemoryStore(time.Hour),
		Engine:    &fakeEngine{},
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error_code"] != "NOT_READY" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	if body["retryable"] != true {
		t.Fatalf("retryable = %v", body["retryable"])
	}
}

func TestUploadCreatesSession(t *testing.T) {
	handler, sessions, objects := newTestHandler(t, testConfig(t), &fakeEngine{})

	body, contentType := multipartUpload(t, "transactions.csv", sampleCSV)
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("session_id missing from response")
	}
	if resp.RowCount != 2 {
		t.Fatalf("row_count = %d, want 2", resp.RowCount)
	}
	if len(resp.Columns) != 4 {
		t.Fatalf("columns = %d, want 4", len(resp.Columns))
	}

	sess, err := sessions.Get(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("session not registered: %v", err)
	}
	if _, err := objects.Stat(context.Background(), sess.ObjectPath); err != nil {
		t.Fatalf("uploaded object not stored at %q: %v", sess.ObjectPath, err)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	handler, _, _ := newTestHandler(t, testConfig(t), &fakeEngine{})
	body, contentType := multipartUpload(t, "notes.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "UNSUPPORTED_FORMAT") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestUploadRejectsEmptyDataset(t *testing.T) {
	handler, _, _ := newTestHandler(t, testConfig(t), &fakeEngine{})
	body, contentType := multipartUpload(t, "empty.csv", "transaction_id,amount\n")
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "EMPTY_DATASET") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestUploadEnforcesRowCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.MaxRows = 1
	handler, _, _ := newTestHandler(t, cfg, &fakeEngine{})

	body, contentType := multipartUpload(t, "transactions.csv", sampleCSV)
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "DATASET_TOO_LARGE") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestQueryReturnsEnvelope(t *testing.T) {
	engine := &fakeEngine{envelope: answer.Envelope{
		Answer:     "amount: 45",
		QueryType:  classifier.QueryLookup,
		Confidence: answer.ConfidenceHigh,
		Insights:   map[string]any{"row_count": 1},
	}}
	handler, _, _ := newTestHandler(t, testConfig(t), engine)

	payload := `{"session_id":"sess-1","question":"What is the amount for T100002?"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var envelope answer.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.QueryType != classifier.QueryLookup {
		t.Fatalf("query_type = %q", envelope.QueryType)
	}
	if engine.lastID != "sess-1" {
		t.Fatalf("engine saw session %q", engine.lastID)
	}
}

func TestQueryUnknownSessionIs404(t *testing.T) {
	engine := &fakeEngine{err: session.ErrSessionNotFound}
	handler, _, _ := newTestHandler(t, testConfig(t), engine)

	payload := `{"session_id":"missing","question":"total spend"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SESSION_NOT_FOUND") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestQueryRejectsMissingFields(t *testing.T) {
	handler, _, _ := newTestHandler(t, testConfig(t), &fakeEngine{})
	for _, payload := range []string{
		"not json",
		`{"session_id":"","question":"x"}`,
		`{"session_id":"sess-1","question":"  "}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: status = %d, want 400", payload, rec.Code)
		}
	}
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	handler, sessions, objects := newTestHandler(t, testConfig(t), &fakeEngine{})

	body, contentType := multipartUpload(t, "transactions.csv", sampleCSV)
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d", rec.Code)
	}
	var uploaded uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/"+uploaded.SessionID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d", rec.Code)
	}
	var meta sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if meta.Format != "csv" || meta.RowCount != 2 {
		t.Fatalf("session meta = %+v", meta)
	}

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/sessions/%s/insights", uploaded.SessionID), nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("insights status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "row_count") {
		t.Fatalf("insights body = %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+uploaded.SessionID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	if _, err := sessions.Get(context.Background(), uploaded.SessionID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("session should be gone, got %v", err)
	}
	if len(objects.objects) != 0 {
		t.Fatalf("stored objects = %v, want none", objects.objects)
	}
}

func TestAuthRequiredGatesProtectedRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Required = true
	validator, err := auth.NewStaticAPIKeyValidator("reader:tenant-1:query_reader")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}

	engine := &fakeEngine{envelope: answer.Envelope{QueryType: classifier.QuerySummary, Confidence: answer.ConfidenceLow}}
	handler := NewHandler(cfg, Dependencies{
		Sessions:       session.NewMemoryStore(time.Hour),
		ObjectStore:    newMemoryObjectStore(),
		Engine:         engine,
		AuthMiddleware: auth.Middleware(nil, validator),
	})

	payload := `{"session_id":"sess-1","question":"overview"}`

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(payload))
	req.Header.Set("X-API-Key", "reader")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", rec.Code)
	}

	// A reader key cannot upload.
	body, contentType := multipartUpload(t, "transactions.csv", sampleCSV)
	req = httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", "reader")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("upload status = %d, want 403", rec.Code)
	}

	// Health stays public.
	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}
