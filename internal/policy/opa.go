// Package policy authorizes resolved identities per route with OPA.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/af-corp/appgen-gateway/internal/auth"
	"github.com/af-corp/appgen-gateway/internal/config"
	"github.com/af-corp/appgen-gateway/internal/httputil"
)

const query = "data.appgen.policy.allow"

// Input is the document evaluated by the policy.
type Input struct {
	Identity InputIdentity `json:"identity"`
	Route    string        `json:"route"`
	Time     InputTime     `json:"time"`
}

type InputIdentity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Strategy string `json:"strategy"`
}

type InputTime struct {
	Hour int    `json:"hour"`
	Day  string `json:"day"`
}

// Evaluator holds the compiled policy. A disabled evaluator allows everything.
type Evaluator struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
}

// NewEvaluator creates a policy evaluator. Call Load() to compile policies.
func NewEvaluator(cfg func() config.PolicyConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Enabled() bool { return e.cfg().Enabled }

// Load compiles Rego modules from the bundle path.
func (e *Evaluator) Load(ctx context.Context) error {
	cfg := e.cfg()
	modules, err := ReadBundleDir(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", cfg.BundlePath)
		return nil
	}
	if err := e.LoadFromModules(ctx, modules); err != nil {
		return err
	}
	slog.Info("opa policies loaded", "modules", len(modules))
	return nil
}

// LoadFromModules compiles policies from provided module sources.
func (e *Evaluator) LoadFromModules(ctx context.Context, modules map[string]string) error {
	opts := []func(*rego.Rego){rego.Query(query)}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	e.mu.Lock()
	e.prepared = &prepared
	e.mu.Unlock()
	return nil
}

// Allow evaluates the policy for an identity on a route. Errors deny.
func (e *Evaluator) Allow(ctx context.Context, id *auth.Identity, route string) (bool, error) {
	if !e.Enabled() {
		return true, nil
	}

	e.mu.RLock()
	prepared := e.prepared
	e.mu.RUnlock()

	if prepared == nil {
		// No policies loaded, fail closed
		return false, errors.New("no policies loaded")
	}

	timeout := e.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	now := time.Now().UTC()
	input := Input{
		Identity: InputIdentity{ID: id.ID, Email: id.Email, Strategy: id.Strategy},
		Route:    route,
		Time:     InputTime{Hour: now.Hour(), Day: now.Weekday().String()},
	}

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("policy evaluation: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := results[0].Expressions[0].Value.(bool)
	return allowed, nil
}

// Middleware denies requests whose identity the policy does not allow. It
// must run after auth.Middleware. Denials look like any other auth failure.
func (e *Evaluator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := w.Header().Get("X-Request-ID")
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			httputil.WriteAuthError(w, reqID)
			return
		}

		allowed, err := e.Allow(r.Context(), id, r.URL.Path)
		if err != nil {
			slog.Error("policy evaluation failed", "request_id", reqID, "error", err)
		}
		if !allowed {
			slog.Warn("request denied by policy", "request_id", reqID, "route", r.URL.Path, "strategy", id.Strategy)
			httputil.WriteAuthError(w, reqID)
			return
		}
		next.ServeHTTP(w, r)
	})
}
