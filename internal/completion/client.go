// Package completion provides clients for the external text completion APIs
// used by the generation pipeline.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrCircuitOpen is returned without calling the provider while its circuit
// breaker is open.
var ErrCircuitOpen = errors.New("completion: provider circuit open")

// Client performs a single, stateless completion call.
type Client interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is one system-instruction plus user-message completion.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type Response struct {
	Text     string
	Model    string
	Provider string
	Usage    Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// StatusError is returned when a provider answers with a non-200 status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

const maxErrorBody = 512

func readStatusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: string(body)}
}

// postJSON sends body to baseURL+path and decodes a 200 answer into out.
// Non-empty entries of extra are added after the provider's own headers.
func postJSON(ctx context.Context, hc *http.Client, provider, baseURL, path string, headers, extra map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(baseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, h := range []map[string]string{headers, extra} {
		for k, v := range h {
			if v != "" {
				req.Header.Set(k, v)
			}
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readStatusError(provider, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}
