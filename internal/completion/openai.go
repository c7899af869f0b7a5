package completion

import (
	"context"
	"net/http"

	"github.com/af-corp/appgen-gateway/internal/config"
)

// OpenAIClient calls /chat/completions on OpenAI or any compatible endpoint.
type OpenAIClient struct {
	name string
	cfg  config.ProviderConfig
	hc   *http.Client
}

func NewOpenAIClient(name string, cfg config.ProviderConfig, hc *http.Client) *OpenAIClient {
	return &OpenAIClient{name: name, cfg: cfg, hc: hc}
}

func (c *OpenAIClient) Name() string { return c.name }

func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	temp := req.Temperature
	body := openAIRequestBody{Model: req.Model, Temperature: &temp}
	if req.System != "" {
		body.Messages = append(body.Messages, openAIMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, openAIMessage{Role: "user", Content: req.Prompt})
	if req.MaxTokens > 0 {
		body.MaxTokens = &req.MaxTokens
	}

	var out openAIResponseBody
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if err := postJSON(ctx, c.hc, c.name, c.cfg.BaseURL, "/chat/completions", headers, c.cfg.Headers, body, &out); err != nil {
		return nil, err
	}

	resp := &Response{
		Model:    out.Model,
		Provider: c.name,
		Usage:    Usage{PromptTokens: out.Usage.PromptTokens, CompletionTokens: out.Usage.CompletionTokens},
	}
	if len(out.Choices) > 0 {
		resp.Text = out.Choices[0].Message.Content
	}
	return resp, nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequestBody struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

type openAIResponseBody struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}
