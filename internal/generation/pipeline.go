// Package generation runs the staged app generation pipeline: an ordered
// list of completion calls where every stage after the first refines the
// previous stage's output.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/af-corp/appgen-gateway/internal/completion"
	"github.com/af-corp/appgen-gateway/internal/telemetry"
)

// Request is an immutable generation request.
type Request struct {
	Description               string
	SupplementaryInstructions string
}

// StageResult is the output of one stage.
type StageResult struct {
	StageIndex int
	Text       string
}

// Response carries the last stage's output verbatim.
type Response struct {
	Description string `json:"description"`
	Code        string `json:"code"`
}

// ClientSource resolves a provider name to a completion client.
type ClientSource interface {
	Get(name string) (completion.Client, bool)
}

// Screener inspects a description before any completion call. A non-nil
// error rejects the request as invalid input.
type Screener interface {
	Screen(ctx context.Context, description string) error
}

type Option func(*Pipeline)

func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithScreener(s Screener) Option {
	return func(p *Pipeline) { p.screener = s }
}

// WithStageTimeout bounds every individual completion call.
func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.stageTimeout = d }
}

// Pipeline runs stages strictly in order. It is safe for concurrent use;
// runs share nothing but the read-only stage list.
type Pipeline struct {
	mu     sync.RWMutex
	stages []Stage

	clients      ClientSource
	screener     Screener
	metrics      *telemetry.Metrics
	stageTimeout time.Duration
	tracer       trace.Tracer
}

func New(stages []Stage, clients ClientSource, opts ...Option) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, errors.New("pipeline has no stages")
	}
	p := &Pipeline{
		stages:  stages,
		clients: clients,
		tracer:  otel.Tracer("github.com/af-corp/appgen-gateway/internal/generation"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SetStages replaces the stage list. Runs already in progress keep the list
// they started with.
func (p *Pipeline) SetStages(stages []Stage) error {
	if len(stages) == 0 {
		return errors.New("pipeline has no stages")
	}
	p.mu.Lock()
	p.stages = stages
	p.mu.Unlock()
	return nil
}

func (p *Pipeline) Stages() []Stage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stages
}

// Generate runs every stage in order and returns the last stage's text. Any
// stage failure aborts the run and discards earlier output.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, p.fail(&Error{Kind: KindInvalidInput, Stage: -1, Err: errors.New("description is required")})
	}
	if p.screener != nil {
		if err := p.screener.Screen(ctx, req.Description); err != nil {
			return nil, p.fail(&Error{Kind: KindInvalidInput, Stage: -1, Err: err})
		}
	}

	stages := p.Stages()
	var last StageResult
	for i, stage := range stages {
		res, err := p.runStage(ctx, stage, i, last.Text, req)
		if err != nil {
			return nil, p.fail(err)
		}
		last = res
	}

	return &Response{Description: req.Description, Code: last.Text}, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, index int, previous string, req Request) (StageResult, error) {
	if err := ctx.Err(); err != nil {
		return StageResult{}, &Error{Kind: KindUpstreamFailure, Stage: index, Err: err}
	}

	prompt, err := BuildPrompt(stage, index, previous, req)
	if err != nil {
		return StageResult{}, &Error{Kind: KindInvalidInput, Stage: index, Err: err}
	}

	client, ok := p.clients.Get(stage.Provider)
	if !ok {
		return StageResult{}, &Error{Kind: KindUpstreamFailure, Stage: index, Err: fmt.Errorf("unknown provider %q", stage.Provider)}
	}

	ctx, span := p.tracer.Start(ctx, "generation.stage", trace.WithAttributes(
		attribute.Int("stage.index", index),
		attribute.String("stage.name", stage.Name),
		attribute.String("provider", stage.Provider),
		attribute.String("model", stage.Model),
	))
	defer span.End()

	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}

	promptTokens := telemetry.EstimateTokens(prompt.System) + telemetry.EstimateTokens(prompt.User)
	start := time.Now()

	resp, err := client.Complete(ctx, &completion.Request{
		Model:       stage.Model,
		System:      prompt.System,
		Prompt:      prompt.User,
		MaxTokens:   stage.MaxTokens,
		Temperature: stage.Temperature,
	})
	durationMs := float64(time.Since(start).Milliseconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		slog.Warn("stage failed",
			"stage", stage.Name,
			"stage_index", index,
			"provider", stage.Provider,
			"duration_ms", durationMs,
			"error", err,
		)
		return StageResult{}, &Error{Kind: KindUpstreamFailure, Stage: index, Err: err}
	}

	if resp.Usage.PromptTokens > 0 {
		promptTokens = resp.Usage.PromptTokens
	}
	completionTokens := resp.Usage.CompletionTokens
	if completionTokens == 0 {
		completionTokens = telemetry.EstimateTokens(resp.Text)
	}
	p.metrics.RecordStage(telemetry.StageLabels{
		Stage:            stage.Name,
		Provider:         stage.Provider,
		DurationMs:       durationMs,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	})
	span.SetAttributes(
		attribute.Int("tokens.prompt", promptTokens),
		attribute.Int("tokens.completion", completionTokens),
	)

	slog.Info("stage complete",
		"stage", stage.Name,
		"stage_index", index,
		"provider", stage.Provider,
		"model", stage.Model,
		"duration_ms", durationMs,
		"prompt_tokens", promptTokens,
		"completion_tokens", completionTokens,
	)

	if strings.TrimSpace(resp.Text) == "" {
		span.SetStatus(codes.Error, "empty response")
		return StageResult{}, &Error{Kind: KindEmptyResponse, Stage: index, Err: errors.New("completion returned no text")}
	}

	return StageResult{StageIndex: index, Text: resp.Text}, nil
}

func (p *Pipeline) fail(err error) error {
	p.metrics.RecordGenerationFailure(KindOf(err).String())
	return err
}
