package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/archive"
	"github.com/saeedalam/stackforge/internal/blueprint"
	"github.com/saeedalam/stackforge/internal/config"
	"github.com/saeedalam/stackforge/internal/provider"
	"github.com/saeedalam/stackforge/internal/storage"
	"github.com/saeedalam/stackforge/pkg/types"
)

type stubProvider struct {
	reply string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Call(ctx context.Context, system, prompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}

const todoReply = `{"description":"d","structure":"t","files":[{"path":"index.html","content":"<html></html>","language":"html"}]}`

func setupTestServer(t *testing.T, stub *stubProvider) (*Server, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewStore(storage.NewFileKV(t.TempDir()), 10, nil)
	t.Cleanup(func() { store.Close() })

	factory := func(cfg types.ProviderConfig) (provider.Provider, error) {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, apperr.New(apperr.KindPrecondition, "missing API key")
		}
		return stub, nil
	}
	cfg := &config.Config{Providers: config.ProvidersConfig{Google: config.EndpointConfig{APIKey: "cfg-key"}}}

	srv := New(config.ServerConfig{MaxUploadBytes: 1 << 20}, Deps{
		Generator: blueprint.NewGenerator(factory),
		Store:     store,
		Seed:      cfg.SeedSettings,
		Version:   "test",
	})
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return body.Error
}

// =============================================================================
// GENERATE / ENHANCE TESTS
// =============================================================================

func TestGenerateEndpoint(t *testing.T) {
	stub := &stubProvider{reply: todoReply}
	srv, store := setupTestServer(t, stub)

	w := doJSON(t, srv, http.MethodPost, "/api/generate", generateRequest{ProjectName: "Todo App", Stack: "vanilla"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp blueprintResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Blueprint.ProjectName != "Todo App" || len(resp.Blueprint.Files) != 1 {
		t.Errorf("Unexpected blueprint: %+v", resp.Blueprint)
	}
	if resp.HistoryID == "" {
		t.Error("Expected history id")
	}

	items, _ := store.History()
	if len(items) != 1 || items[0].ID != resp.HistoryID {
		t.Errorf("Expected result recorded in history, got %+v", items)
	}
}

func TestGenerateEndpointNoSave(t *testing.T) {
	srv, store := setupTestServer(t, &stubProvider{reply: todoReply})

	w := doJSON(t, srv, http.MethodPost, "/api/generate", generateRequest{ProjectName: "P", NoSave: true})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	items, _ := store.History()
	if len(items) != 0 {
		t.Errorf("Expected no history, got %d", len(items))
	}
}

func TestGenerateEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		stub   *stubProvider
		body   any
		status int
		kind   string
	}{
		{"missing name", &stubProvider{reply: todoReply}, generateRequest{}, http.StatusBadRequest, "invalid_input"},
		{"rate limit", &stubProvider{err: apperr.New(apperr.KindRateLimit, "quota").WithHint(apperr.RateLimitHint)}, generateRequest{ProjectName: "P"}, http.StatusTooManyRequests, "rate_limit"},
		{"invalid json", &stubProvider{reply: "{not json"}, generateRequest{ProjectName: "P"}, http.StatusBadGateway, "invalid_json"},
		{"empty", &stubProvider{reply: ""}, generateRequest{ProjectName: "P"}, http.StatusBadGateway, "empty_response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := setupTestServer(t, tt.stub)
			w := doJSON(t, srv, http.MethodPost, "/api/generate", tt.body)
			if w.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if got := decodeError(t, w); got.Kind != tt.kind {
				t.Errorf("Expected kind %q, got %+v", tt.kind, got)
			}
		})
	}
}

func TestGenerateEndpointMissingCredential(t *testing.T) {
	stub := &stubProvider{reply: todoReply}
	srv, store := setupTestServer(t, stub)
	store.SaveSettings(types.Settings{ActiveProvider: types.ProviderOpenRouter})

	w := doJSON(t, srv, http.MethodPost, "/api/generate", generateRequest{ProjectName: "P"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if decodeError(t, w).Kind != "precondition" {
		t.Errorf("Expected precondition error")
	}
	if stub.calls != 0 {
		t.Errorf("Expected no provider call, got %d", stub.calls)
	}
}

func TestEnhanceEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t, &stubProvider{reply: todoReply})

	w := doJSON(t, srv, http.MethodPost, "/api/enhance", enhanceRequest{
		ProjectName: "Old",
		Files:       []types.FileRecord{{Path: "a.js", Content: "var a"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/api/enhance", enhanceRequest{ProjectName: "Old"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without files, got %d", w.Code)
	}
}

// =============================================================================
// ARCHIVE TESTS
// =============================================================================

func TestArchiveRoundTrip(t *testing.T) {
	srv, _ := setupTestServer(t, &stubProvider{})
	files := []types.FileRecord{
		{Path: "src/a.ts", Content: "export {}", Language: "typescript"},
		{Path: "README.md", Content: "# hi", Language: "markdown"},
	}

	w := doJSON(t, srv, http.MethodPost, "/api/archive/encode", encodeRequest{ProjectName: "demo", Files: files})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), archive.FileName("demo")) {
		t.Errorf("Unexpected Content-Disposition %q", w.Header().Get("Content-Disposition"))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "demo-blueprint.zip")
	part.Write(w.Body.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/archive/decode", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp decodeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ProjectName != "demo-blueprint" {
		t.Errorf("Expected guessed name 'demo-blueprint', got %q", resp.ProjectName)
	}
	if len(resp.Files) != 2 {
		t.Fatalf("Expected 2 files, got %+v", resp.Files)
	}
	if resp.Files[0].Path != "src/a.ts" || resp.Files[0].Content != "export {}" {
		t.Errorf("Unexpected file %+v", resp.Files[0])
	}
}

func TestArchiveDecodeCorrupt(t *testing.T) {
	srv, _ := setupTestServer(t, &stubProvider{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "broken.zip")
	part.Write([]byte("definitely not a zip"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/archive/decode", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if decodeError(t, w).Kind != string(apperr.KindArchiveOpen) {
		t.Errorf("Expected archive_open error")
	}
}

func TestArchiveDecodeMissingFile(t *testing.T) {
	srv, _ := setupTestServer(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/archive/decode", strings.NewReader(""))
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

// =============================================================================
// HISTORY / SETTINGS TESTS
// =============================================================================

func TestHistoryEndpoints(t *testing.T) {
	srv, store := setupTestServer(t, &stubProvider{})
	item, _ := store.AddHistory("Alpha", &types.Blueprint{Files: []types.FileRecord{{Path: "a.go"}}})
	store.AddHistory("Beta", &types.Blueprint{Files: []types.FileRecord{{Path: "b.go"}}})

	w := doJSON(t, srv, http.MethodGet, "/api/history?q=alp", nil)
	var items []types.HistoryItem
	json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 1 || items[0].ID != item.ID {
		t.Errorf("Expected search to return Alpha, got %+v", items)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/history/"+item.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/history/"+item.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	w = doJSON(t, srv, http.MethodGet, "/api/history/"+item.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/history", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	remaining, _ := store.History()
	if len(remaining) != 0 {
		t.Errorf("Expected empty history, got %d", len(remaining))
	}
}

func TestSettingsEndpoints(t *testing.T) {
	srv, store := setupTestServer(t, &stubProvider{})
	store.SaveSettings(types.Settings{ActiveProvider: "google", Google: types.ProviderCredentials{APIKey: "AIzaSecretKey123"}})

	w := doJSON(t, srv, http.MethodGet, "/api/settings", nil)
	var got types.Settings
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.Google.APIKey == "AIzaSecretKey123" || got.Google.APIKey == "" {
		t.Errorf("Expected redacted key, got %q", got.Google.APIKey)
	}

	// Round-tripping the redacted form keeps the stored key
	got.ActiveProvider = "openrouter"
	got.OpenRouter.APIKey = "sk-or-new"
	w = doJSON(t, srv, http.MethodPut, "/api/settings", got)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	stored, _ := store.Settings()
	if stored.Google.APIKey != "AIzaSecretKey123" {
		t.Errorf("Expected stored google key kept, got %q", stored.Google.APIKey)
	}
	if stored.OpenRouter.APIKey != "sk-or-new" || stored.ActiveProvider != "openrouter" {
		t.Errorf("Unexpected stored settings %+v", stored)
	}

	w = doJSON(t, srv, http.MethodPut, "/api/settings", types.Settings{ActiveProvider: "anthropic"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown provider, got %d", w.Code)
	}
}

// =============================================================================
// MISC TESTS
// =============================================================================

func TestStacksHealthAndMetrics(t *testing.T) {
	srv, _ := setupTestServer(t, &stubProvider{})

	w := doJSON(t, srv, http.MethodGet, "/api/stacks", nil)
	var stacks stacksResponse
	json.Unmarshal(w.Body.Bytes(), &stacks)
	if stacks.Default != "vanilla" || len(stacks.Stacks) == 0 {
		t.Errorf("Unexpected stacks response: %+v", stacks)
	}

	w = doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("Unexpected health response: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/metrics", nil)
	if !strings.Contains(w.Body.String(), "stackforge_http_requests_total") {
		t.Errorf("Expected http metrics in /metrics output")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("Expected CORS allow origin header, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestRunStopsOnCancel(t *testing.T) {
	srv, _ := setupTestServer(t, &stubProvider{})
	srv.cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunListenError(t *testing.T) {
	srv, _ := setupTestServer(t, &stubProvider{})
	srv.cfg.Addr = "127.0.0.1:not-a-port"

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected listen error for invalid address")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return on listen failure")
	}
}
