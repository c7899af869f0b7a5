package completion

import (
	"sync"
	"time"
)

// HealthTracker hands out one CircuitBreaker per provider name, created on
// first use with the tracker's threshold and probe interval.
type HealthTracker struct {
	threshold  int
	probeAfter time.Duration

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewHealthTracker(failureThreshold int, probeAfter time.Duration) *HealthTracker {
	return &HealthTracker{
		threshold:  failureThreshold,
		probeAfter: probeAfter,
		breakers:   map[string]*CircuitBreaker{},
	}
}

func (h *HealthTracker) Breaker(provider string) *CircuitBreaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	cb := h.breakers[provider]
	if cb == nil {
		cb = NewCircuitBreaker(h.threshold, h.probeAfter)
		h.breakers[provider] = cb
	}
	return cb
}

// States reports the circuit state of every provider seen so far, for /healthz.
func (h *HealthTracker) States() map[string]string {
	h.mu.Lock()
	snapshot := make(map[string]*CircuitBreaker, len(h.breakers))
	for name, cb := range h.breakers {
		snapshot[name] = cb
	}
	h.mu.Unlock()

	states := make(map[string]string, len(snapshot))
	for name, cb := range snapshot {
		states[name] = cb.State().String()
	}
	return states
}
