package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/swasthai/swasth/internal/chat"
	"github.com/swasthai/swasth/internal/ingest"
	"github.com/swasthai/swasth/internal/log"
	"github.com/swasthai/swasth/internal/testutil"
)

// modelStub scripts replies for the conversation layer.
type modelStub struct {
	chunks []string
	err    error

	lastModel string
}

func (s *modelStub) Generate(ctx context.Context, model string, _ []chat.Message, onChunk func(context.Context, string) error) (string, error) {
	s.lastModel = model
	if s.err != nil {
		return "", s.err
	}
	if onChunk != nil {
		for _, c := range s.chunks {
			if err := onChunk(ctx, c); err != nil {
				return "", err
			}
		}
	}
	return strings.Join(s.chunks, ""), nil
}

type nullRetriever struct{}

func (nullRetriever) Knowledge(context.Context, string, int) string { return "" }
func (nullRetriever) Memory(context.Context, string, int) string    { return "" }

type nullRecorder struct{}

func (nullRecorder) Record(context.Context, string, string) {}

// ingesterStub reports a fixed outcome for any file.
type ingesterStub struct {
	lastPath string
	err      error
}

func (s *ingesterStub) File(_ context.Context, path string) (ingest.FileReport, error) {
	s.lastPath = path
	if s.err != nil {
		return ingest.FileReport{Path: path}, s.err
	}
	return ingest.FileReport{Path: path, Chunks: 1, Stored: 1}, nil
}

func newTestServer(t *testing.T, model *modelStub, pipeline Ingester) *Server {
	t.Helper()
	if model == nil {
		model = &modelStub{chunks: []string{"ok"}}
	}
	registry := chat.NewRegistry(func() *chat.Manager {
		return chat.NewManager(model, nullRetriever{}, nullRecorder{}, "phi3:mini", log.NewNop())
	})
	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		Sessions:     registry,
		Pipeline:     pipeline,
		KnowledgeDir: t.TempDir(),
		CORSOrigins:  []string{"http://localhost:3000"},
		RateBurst:    1000,
	})
	if err != nil {
		t.Fatalf("NewServer() unexpected error: %v", err)
	}
	return srv
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestReadyWithoutPoolDegradesToLiveness(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestChatReturnsReply(t *testing.T) {
	srv := newTestServer(t, &modelStub{chunks: []string{"hello there"}}, nil)

	rec := postJSON(t, srv, "/api/chat", chatRequest{SessionID: "s1", Message: "hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reply != "hello there" || resp.SessionID != "s1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	tests := []struct {
		name string
		body chatRequest
	}{
		{"missing session", chatRequest{Message: "hi"}},
		{"missing message", chatRequest{SessionID: "s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, srv, "/api/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestChatBackendFailureReturns502(t *testing.T) {
	srv := newTestServer(t, &modelStub{err: errors.New("ollama down")}, nil)

	rec := postJSON(t, srv, "/api/chat", chatRequest{SessionID: "s1", Message: "hi"})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "generation_failed") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestChatSessionsAreIsolated(t *testing.T) {
	model := &modelStub{chunks: []string{"ok"}}
	srv := newTestServer(t, model, nil)

	postJSON(t, srv, "/api/chat", chatRequest{SessionID: "alice", Message: "first"})
	postJSON(t, srv, "/api/model", modelRequest{SessionID: "alice", Model: "llama3:8b"})

	// Bob's session still uses the default model.
	postJSON(t, srv, "/api/chat", chatRequest{SessionID: "bob", Message: "hi"})
	if model.lastModel != "phi3:mini" {
		t.Errorf("bob generated with %q, want default", model.lastModel)
	}

	postJSON(t, srv, "/api/chat", chatRequest{SessionID: "alice", Message: "again"})
	if model.lastModel != "llama3:8b" {
		t.Errorf("alice generated with %q, want switched model", model.lastModel)
	}
}

func TestStreamEmitsChunksAndDone(t *testing.T) {
	srv := newTestServer(t, &modelStub{chunks: []string{"drink ", "fluids"}}, nil)

	rec := postJSON(t, srv, "/api/chat/stream", chatRequest{SessionID: "s1", Message: "hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}

	events := testutil.ParseSSEEvents(t, rec.Body.String())
	chunks := testutil.FindAllEvents(events, EventChunk)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunk events, want 2:\n%s", len(chunks), rec.Body.String())
	}
	if chunks[0].Data != `{"text":"drink "}` || chunks[1].Data != `{"text":"fluids"}` {
		t.Errorf("chunk payloads = %q, %q", chunks[0].Data, chunks[1].Data)
	}
	done := testutil.FindEvent(events, EventDone)
	if done == nil {
		t.Fatalf("missing done event:\n%s", rec.Body.String())
	}
	if !strings.Contains(done.Data, `"reply":"drink fluids"`) {
		t.Errorf("done payload = %q", done.Data)
	}
}

func TestStreamBackendFailureEmitsErrorEvent(t *testing.T) {
	srv := newTestServer(t, &modelStub{err: errors.New("ollama down")}, nil)

	rec := postJSON(t, srv, "/api/chat/stream", chatRequest{SessionID: "s1", Message: "hi"})
	events := testutil.ParseSSEEvents(t, rec.Body.String())
	errEvent := testutil.FindEvent(events, EventError)
	if errEvent == nil {
		t.Fatalf("missing error event:\n%s", rec.Body.String())
	}
	if !strings.Contains(errEvent.Data, "generation_failed") {
		t.Errorf("error payload = %q", errEvent.Data)
	}
}

func TestStreamValidationReturnsPlainJSON400(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := postJSON(t, srv, "/api/chat/stream", chatRequest{SessionID: "s1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if !strings.Contains(rec.Body.String(), "invalid_request") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestResetEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := postJSON(t, srv, "/api/reset", resetRequest{SessionID: "s1"})
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "conversation reset") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = postJSON(t, srv, "/api/reset", resetRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for missing sessionId, want 400", rec.Code)
	}
}

func TestModelEndpointValidation(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := postJSON(t, srv, "/api/model", modelRequest{SessionID: "s1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d for missing model, want 400", rec.Code)
	}
}

func multipartUpload(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf, mw.FormDataContentType()
}

func TestIngestUpload(t *testing.T) {
	pipeline := &ingesterStub{}
	srv := newTestServer(t, nil, pipeline)

	body, contentType := multipartUpload(t, map[string]string{"notes.txt": "some medical text"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Files) != 1 || resp.Files[0].Stored != 1 {
		t.Errorf("response = %+v", resp)
	}
	if !strings.HasSuffix(pipeline.lastPath, "notes.txt") {
		t.Errorf("pipeline received path %q", pipeline.lastPath)
	}
}

func TestIngestUploadReportsFailedFile(t *testing.T) {
	pipeline := &ingesterStub{err: errors.New("pdf is encrypted")}
	srv := newTestServer(t, nil, pipeline)

	body, contentType := multipartUpload(t, map[string]string{"doc.txt": "text"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Files) != 1 {
		t.Fatalf("got %d file reports, want 1", len(resp.Files))
	}
	got := resp.Files[0]
	if !strings.HasSuffix(got.Path, "doc.txt") {
		t.Errorf("path = %q", got.Path)
	}
	if got.Error != "pdf is encrypted" {
		t.Errorf("error = %q, want the failure message", got.Error)
	}
	if got.Stored != 0 {
		t.Errorf("stored = %d for a failed file", got.Stored)
	}
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	srv := newTestServer(t, nil, &ingesterStub{})

	body, contentType := multipartUpload(t, map[string]string{"image.png": "binary"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported_format") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestIngestRouteDisabledWithoutPipeline(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	body, contentType := multipartUpload(t, map[string]string{"notes.txt": "text"})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty", got)
	}
}

func TestRateLimitExhaustion(t *testing.T) {
	model := &modelStub{chunks: []string{"ok"}}
	registry := chat.NewRegistry(func() *chat.Manager {
		return chat.NewManager(model, nullRetriever{}, nullRecorder{}, "phi3:mini", log.NewNop())
	})
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Sessions:  registry,
		RateBurst: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	var last int
	for i := 0; i < 3; i++ {
		rec := postJSON(t, srv, "/api/chat", chatRequest{SessionID: "s1", Message: "hi"})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}
