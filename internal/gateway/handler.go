package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/af-corp/appgen-gateway/internal/auth"
	"github.com/af-corp/appgen-gateway/internal/generation"
	"github.com/af-corp/appgen-gateway/internal/httputil"
)

const maxBodyBytes = 1 << 20

// Generator runs the app generation pipeline.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Response, error)
}

// Instructions is the supplementary instructions snapshot.
type Instructions interface {
	Current() string
	Reload(ctx context.Context) string
}

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	generator    Generator
	instructions Instructions
	redact       func(string) string
	version      string
	providers    func() map[string]string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRedactor sets the function applied to error details before they are
// returned to callers.
func WithRedactor(fn func(string) string) HandlerOption {
	return func(h *Handler) { h.redact = fn }
}

func WithVersion(v string) HandlerOption {
	return func(h *Handler) { h.version = v }
}

// WithProviderStates reports completion provider circuit states on /healthz.
func WithProviderStates(fn func() map[string]string) HandlerOption {
	return func(h *Handler) { h.providers = fn }
}

func NewHandler(generator Generator, instructions Instructions, opts ...HandlerOption) *Handler {
	h := &Handler{
		generator:    generator,
		instructions: instructions,
		redact:       func(s string) string { return s },
		version:      "dev",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type createAppRequest struct {
	Description string `json:"description"`
}

type createAppResponse struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

type testConnectionResponse struct {
	Message string `json:"message"`
	User    string `json:"user"`
}

type reloadResponse struct {
	Message string `json:"message"`
	Content string `json:"content"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Providers map[string]string `json:"providers,omitempty"`
}

// Root handles GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, "Welcome to my AI app generator!")
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Version: h.version}
	if h.providers != nil {
		resp.Providers = h.providers()
	}
	httputil.WriteJSON(w, "", http.StatusOK, resp)
}

// TestConnection handles POST /test-connection
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID)
		return
	}
	httputil.WriteJSON(w, reqID, http.StatusOK, testConnectionResponse{
		Message: "Connected successfully!",
		User:    id.Email,
	})
}

// CreateApp handles POST /create_app
func (h *Handler) CreateApp(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	start := time.Now()

	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteAuthError(w, reqID)
		return
	}

	var body createAppRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON body")
		return
	}

	resp, err := h.generator.Generate(r.Context(), generation.Request{
		Description:               body.Description,
		SupplementaryInstructions: h.instructions.Current(),
	})
	if err != nil {
		kind := generation.KindOf(err)
		if kind == 0 {
			kind = generation.KindUpstreamFailure
		}
		slog.Error("app generation failed",
			"request_id", reqID,
			"strategy", id.Strategy,
			"code", kind.String(),
			"error", h.redact(err.Error()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		httputil.WriteGenerationError(w, reqID, kind.String(), h.redact(err.Error()))
		return
	}

	slog.Info("app generated",
		"request_id", reqID,
		"strategy", id.Strategy,
		"code_bytes", len(resp.Code),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, reqID, http.StatusOK, createAppResponse{
		Message:     "App generated successfully!",
		Description: resp.Description,
		Code:        resp.Code,
	})
}

// ReloadInstructions handles GET /reload-instructions
func (h *Handler) ReloadInstructions(w http.ResponseWriter, r *http.Request) {
	content := h.instructions.Reload(r.Context())
	httputil.WriteJSON(w, RequestIDFromContext(r.Context()), http.StatusOK, reloadResponse{
		Message: "Instructions reloaded",
		Content: content,
	})
}
