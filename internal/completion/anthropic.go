package completion

import (
	"context"
	"net/http"

	"github.com/af-corp/appgen-gateway/internal/config"
)

const (
	defaultAnthropicVersion   = "2023-06-01"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	name string
	cfg  config.ProviderConfig
	hc   *http.Client
}

func NewAnthropicClient(name string, cfg config.ProviderConfig, hc *http.Client) *AnthropicClient {
	return &AnthropicClient{name: name, cfg: cfg, hc: hc}
}

func (c *AnthropicClient) Name() string { return c.name }

func (c *AnthropicClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	temp := req.Temperature
	body := anthropicRequestBody{
		Model:       req.Model,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: &temp,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultAnthropicMaxTokens // required by the API
	}

	version := c.cfg.APIVersion
	if version == "" {
		version = defaultAnthropicVersion
	}
	headers := map[string]string{"x-api-key": c.cfg.APIKey, "anthropic-version": version}

	var out anthropicResponseBody
	if err := postJSON(ctx, c.hc, c.name, c.cfg.BaseURL, "/messages", headers, c.cfg.Headers, body, &out); err != nil {
		return nil, err
	}

	resp := &Response{
		Model:    out.Model,
		Provider: c.name,
		Usage:    Usage{PromptTokens: out.Usage.InputTokens, CompletionTokens: out.Usage.OutputTokens},
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			resp.Text = block.Text
			break
		}
	}
	return resp, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequestBody struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicResponseBody struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
