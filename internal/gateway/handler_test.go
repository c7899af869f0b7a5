package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/af-corp/appgen-gateway/internal/auth"
	"github.com/af-corp/appgen-gateway/internal/completion"
	"github.com/af-corp/appgen-gateway/internal/filter/secrets"
	"github.com/af-corp/appgen-gateway/internal/generation"
	"github.com/af-corp/appgen-gateway/internal/httputil"
)

type fakeClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []completion.Request
}

func (c *fakeClient) Name() string { return "fake" }

func (c *fakeClient) Complete(_ context.Context, req *completion.Request) (*completion.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, *req)
	if c.err != nil {
		return nil, c.err
	}
	return &completion.Response{Text: c.reply, Provider: "fake"}, nil
}

type clientMap map[string]completion.Client

func (m clientMap) Get(name string) (completion.Client, bool) {
	c, ok := m[name]
	return c, ok
}

type fakeInstructions struct {
	content string
	reloads int
}

func (f *fakeInstructions) Current() string { return f.content }

func (f *fakeInstructions) Reload(context.Context) string {
	f.reloads++
	return f.content
}

func newTestServer(t *testing.T, client *fakeClient, instr *fakeInstructions, authorize func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	stages := []generation.Stage{{Name: "generate", System: "gen", MaxTokens: 3000, Temperature: 0.7, Provider: "fake", Model: "m"}}
	p, err := generation.New(stages, clientMap{"fake": client})
	if err != nil {
		t.Fatalf("generation.New failed: %v", err)
	}
	h := NewHandler(p, instr, WithRedactor(secrets.NewScanner().Redact), WithVersion("test"))
	return NewRouter(h, RouterConfig{
		Authenticate: auth.Middleware(auth.NewResolver(auth.ModeBearer, auth.BearerEmail{}), nil),
		Authorize:    authorize,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var bearer = map[string]string{"Authorization": "Bearer dev@example.com"}

func TestRoot(t *testing.T) {
	srv := newTestServer(t, &fakeClient{}, &fakeInstructions{}, nil)
	rr := do(t, srv, http.MethodGet, "/", "", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "Welcome to my AI app generator!" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeClient{}, &fakeInstructions{}, nil)
	rr := do(t, srv, http.MethodGet, "/healthz", "", nil)

	var body healthResponse
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Status != "healthy" || body.Version != "test" {
		t.Errorf("unexpected health body %+v", body)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, &fakeClient{}, &fakeInstructions{}, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"preflight create_app", http.MethodOptions, "/create_app", http.StatusNoContent},
		{"preflight unknown path", http.MethodOptions, "/nope", http.StatusNoContent},
		{"plain get", http.MethodGet, "/", http.StatusOK},
		{"auth failure", http.MethodPost, "/test-connection", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, "", nil)
			if rr.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("Allow-Origin = %q", got)
			}
			if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization, X-User-Id, X-User-Email" {
				t.Errorf("Allow-Headers = %q", got)
			}
			if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
				t.Errorf("Allow-Methods = %q", got)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, &fakeClient{}, &fakeInstructions{}, nil)

	rr := do(t, srv, http.MethodGet, "/", "", map[string]string{"X-Request-ID": "req-123"})
	if got := rr.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}

	rr = do(t, srv, http.MethodGet, "/", "", nil)
	if got := rr.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("expected generated uuid, got %q", got)
	}
}

func TestHandlers_UseContextRequestID(t *testing.T) {
	h := NewHandler(nil, &fakeInstructions{})
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
	}{
		{"reload", h.ReloadInstructions, http.StatusOK},
		{"test-connection without identity", h.TestConnection, http.StatusUnauthorized},
		{"create_app without identity", h.CreateApp, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), requestIDKey, "ctx-req-1"))
			rr := httptest.NewRecorder()
			tt.handler(rr, req)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if got := rr.Header().Get("X-Request-ID"); got != "ctx-req-1" {
				t.Errorf("X-Request-ID = %q, want ctx-req-1", got)
			}
		})
	}

	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context should have no request id, got %q", got)
	}
}

func TestTestConnection(t *testing.T) {
	srv := newTestServer(t, &fakeClient{}, &fakeInstructions{}, nil)

	rr := do(t, srv, http.MethodPost, "/test-connection", "", bearer)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body testConnectionResponse
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Message != "Connected successfully!" {
		t.Errorf("unexpected message %q", body.Message)
	}
	if body.User != "dev@example.com" {
		t.Errorf("unexpected user %q", body.User)
	}
}

func TestTestConnection_Unauthenticated(t *testing.T) {
	srv := newTestServer(t, &fakeClient{}, &fakeInstructions{}, nil)

	for _, hdr := range []map[string]string{nil, {"Authorization": "Bearer not-an-email"}} {
		rr := do(t, srv, http.MethodPost, "/test-connection", "", hdr)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		var body httputil.ErrorBody
		json.NewDecoder(rr.Body).Decode(&body)
		if body.Error != "Authentication failed" {
			t.Errorf("unexpected error body %q", body.Error)
		}
	}
}

func TestCreateApp(t *testing.T) {
	client := &fakeClient{reply: "<html>todo</html>"}
	srv := newTestServer(t, client, &fakeInstructions{content: "Use Tailwind."}, nil)

	rr := do(t, srv, http.MethodPost, "/create_app", `{"description":"todo list"}`, bearer)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body createAppResponse
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Message != "App generated successfully!" {
		t.Errorf("unexpected message %q", body.Message)
	}
	if body.Description != "todo list" || body.Code != "<html>todo</html>" {
		t.Errorf("unexpected body %+v", body)
	}

	if len(client.requests) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(client.requests))
	}
	if want := "todo list\n\nAdditional instructions: Use Tailwind."; client.requests[0].Prompt != want {
		t.Errorf("prompt = %q, want %q", client.requests[0].Prompt, want)
	}
}

func TestCreateApp_BlankDescription(t *testing.T) {
	client := &fakeClient{reply: "x"}
	srv := newTestServer(t, client, &fakeInstructions{}, nil)

	for _, body := range []string{`{"description":"   "}`, `{}`, ``} {
		rr := do(t, srv, http.MethodPost, "/create_app", body, bearer)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("body %q: expected 500, got %d", body, rr.Code)
		}
		var resp httputil.GenerationErrorBody
		json.NewDecoder(rr.Body).Decode(&resp)
		if resp.Error != "Failed to generate app" || resp.Code != "invalid_input" {
			t.Errorf("body %q: unexpected error %+v", body, resp)
		}
	}
	if len(client.requests) != 0 {
		t.Errorf("no completion call expected, got %d", len(client.requests))
	}
}

func TestCreateApp_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, &fakeClient{}, &fakeInstructions{}, nil)
	rr := do(t, srv, http.MethodPost, "/create_app", `{"description":`, bearer)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestCreateApp_UpstreamFailureIsRedacted(t *testing.T) {
	key := "sk-proj-abcdefghijklmnopqrstuvwxyz123456"
	client := &fakeClient{err: errors.New("upstream rejected key " + key)}
	srv := newTestServer(t, client, &fakeInstructions{}, nil)

	rr := do(t, srv, http.MethodPost, "/create_app", `{"description":"todo list"}`, bearer)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}

	var resp httputil.GenerationErrorBody
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Code != "upstream_failure" {
		t.Errorf("expected upstream_failure, got %q", resp.Code)
	}
	if strings.Contains(resp.Details, key) {
		t.Errorf("details leak the key: %q", resp.Details)
	}
	if !strings.Contains(resp.Details, "[REDACTED]") {
		t.Errorf("expected redaction marker in %q", resp.Details)
	}
}

func TestCreateApp_RequiresAuth(t *testing.T) {
	client := &fakeClient{reply: "x"}
	srv := newTestServer(t, client, &fakeInstructions{}, nil)

	rr := do(t, srv, http.MethodPost, "/create_app", `{"description":"todo list"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if len(client.requests) != 0 {
		t.Error("generation must not run without authentication")
	}
}

func TestAuthorizeDeny(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.WriteAuthError(w, "")
		})
	}
	srv := newTestServer(t, &fakeClient{reply: "x"}, &fakeInstructions{}, deny)

	rr := do(t, srv, http.MethodPost, "/test-connection", "", bearer)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestReloadInstructions_Idempotent(t *testing.T) {
	instr := &fakeInstructions{content: "Keep it simple."}
	srv := newTestServer(t, &fakeClient{}, instr, nil)

	var bodies []reloadResponse
	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodGet, "/reload-instructions", "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var body reloadResponse
		json.NewDecoder(rr.Body).Decode(&body)
		bodies = append(bodies, body)
	}

	if bodies[0] != bodies[1] {
		t.Errorf("reloads differ: %+v vs %+v", bodies[0], bodies[1])
	}
	if bodies[0].Message != "Instructions reloaded" || bodies[0].Content != "Keep it simple." {
		t.Errorf("unexpected body %+v", bodies[0])
	}
	if instr.reloads != 2 {
		t.Errorf("expected 2 reloads, got %d", instr.reloads)
	}
}
