package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/af-corp/appgen-gateway/internal/telemetry"
)

// RouterConfig wires the middleware guarding the authenticated routes.
// Authorize is optional and runs after Authenticate.
type RouterConfig struct {
	Authenticate func(http.Handler) http.Handler
	Authorize    func(http.Handler) http.Handler
	Metrics      *telemetry.Metrics
}

// NewRouter builds the public API router.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(CORS)
	r.Use(Metrics(cfg.Metrics))

	// Unauthenticated routes
	r.Get("/", h.Root)
	r.Get("/healthz", h.Health)
	r.Get("/reload-instructions", h.ReloadInstructions)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(cfg.Authenticate)
		if cfg.Authorize != nil {
			r.Use(cfg.Authorize)
		}
		r.Post("/test-connection", h.TestConnection)
		r.Post("/create_app", h.CreateApp)
	})

	return r
}
