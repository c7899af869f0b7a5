package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// BreakerClient guards a Client with its provider's circuit breaker.
// It never retries.
type BreakerClient struct {
	next   Client
	health *HealthTracker
}

func NewBreakerClient(next Client, health *HealthTracker) *BreakerClient {
	return &BreakerClient{next: next, health: health}
}

func (c *BreakerClient) Name() string { return c.next.Name() }

func (c *BreakerClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	cb := c.health.Breaker(c.next.Name())
	if !cb.Allow() {
		return nil, fmt.Errorf("%s: %w", c.next.Name(), ErrCircuitOpen)
	}

	resp, err := c.next.Complete(ctx, req)
	switch {
	case err == nil:
		cb.RecordSuccess()
	case errors.Is(err, context.Canceled):
		// Caller cancellation is not a provider failure.
		cb.ReleaseProbe()
	default:
		cb.RecordFailure()
		if cb.State() == StateOpen {
			slog.Warn("provider circuit opened", "provider", c.next.Name(), "error", err)
		}
	}
	return resp, err
}
