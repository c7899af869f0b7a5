package completion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/af-corp/appgen-gateway/internal/config"
)

// Registry maps configured provider names to clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
	}
}

func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
}

func (r *Registry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Replace swaps in the clients of other. Callers holding r keep working
// across a provider config reload.
func (r *Registry) Replace(other *Registry) {
	other.mu.RLock()
	clients := make(map[string]Client, len(other.clients))
	for name, c := range other.clients {
		clients[name] = c
	}
	other.mu.RUnlock()

	r.mu.Lock()
	r.clients = clients
	r.mu.Unlock()
}

// BuildFromConfig builds one client per configured provider. When health is
// non-nil every client is wrapped in a BreakerClient. Providers that cannot
// be constructed are skipped; it is an error if none remain.
func BuildFromConfig(ctx context.Context, provCfg *config.ProvidersConfig, health *HealthTracker) (*Registry, error) {
	registry := NewRegistry()
	for name, cfg := range provCfg.Providers {
		httpClient := &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}

		var client Client
		switch cfg.Type {
		case "anthropic":
			client = NewAnthropicClient(name, cfg, httpClient)
		case "gemini":
			gc, err := NewGeminiClient(ctx, name, cfg, httpClient)
			if err != nil {
				slog.Warn("skipping completion provider", "provider", name, "error", err)
				continue
			}
			client = gc
		case "openai":
			client = NewOpenAIClient(name, cfg, httpClient)
		default:
			// Fall back to OpenAI-compatible for unknown types
			client = NewOpenAIClient(name, cfg, httpClient)
		}

		if health != nil {
			client = NewBreakerClient(client, health)
		}
		registry.Register(name, client)
	}
	if len(registry.clients) == 0 {
		return nil, fmt.Errorf("no completion providers configured")
	}
	return registry, nil
}
