// Package filter screens app descriptions before they reach a completion
// provider. Filters either pass, flag (log and continue) or block.
package filter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/af-corp/appgen-gateway/internal/telemetry"
)

type Action string

const (
	ActionPass  Action = "pass"
	ActionFlag  Action = "flag"
	ActionBlock Action = "block"
)

// Result is one filter's verdict on a description.
type Result struct {
	Action     Action
	FilterName string
	Message    string
	Detections int
	Score      float64
}

type Filter interface {
	Name() string
	Enabled() bool
	ScanText(ctx context.Context, text string) Result
}

// BlockedError carries the verdict of the filter that stopped a description.
type BlockedError struct {
	Result Result
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by %s filter: %s", e.Result.FilterName, e.Result.Message)
}

// Chain applies filters in registration order.
type Chain struct {
	filters []Filter
	metrics *telemetry.Metrics
}

func NewChain(metrics *telemetry.Metrics, filters ...Filter) *Chain {
	return &Chain{filters: filters, metrics: metrics}
}

// Screen runs every enabled filter until one blocks, returning a
// *BlockedError in that case. Flags are logged and counted only.
func (c *Chain) Screen(ctx context.Context, description string) error {
	for _, f := range c.filters {
		if !f.Enabled() {
			continue
		}
		res := f.ScanText(ctx, description)
		if res.Action == ActionPass {
			continue
		}
		c.metrics.RecordFilterAction(res.FilterName, string(res.Action))
		attrs := []any{"filter", res.FilterName, "score", res.Score, "detections", res.Detections}
		if res.Action == ActionBlock {
			slog.WarnContext(ctx, "description blocked", attrs...)
			return &BlockedError{Result: res}
		}
		slog.InfoContext(ctx, "description flagged", attrs...)
	}
	return nil
}
