package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/af-corp/appgen-gateway/internal/config"
)

// InstantClient implements Provider against the InstantDB admin HTTP API.
type InstantClient struct {
	baseURL    string
	appID      string
	adminToken string
	client     *http.Client
}

func NewInstantClient(cfg config.InstantProviderConfig, timeout time.Duration) *InstantClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &InstantClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		appID:      cfg.AppID,
		adminToken: cfg.AdminToken,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *InstantClient) VerifyToken(ctx context.Context, token string) (*User, error) {
	body := map[string]string{
		"app-id":        c.appID,
		"refresh-token": token,
	}
	status, data, err := c.post(ctx, "/runtime/auth/verify_refresh_token", body)
	if err != nil {
		return nil, err
	}
	// Instant answers 400 for unknown or expired tokens.
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("instant verify returned status %d: %s", status, truncate(data))
	}

	var resp struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal instant verify response: %w", err)
	}
	if resp.User == nil || resp.User.ID == "" {
		return nil, ErrNotFound
	}
	return resp.User, nil
}

func (c *InstantClient) FindByRefreshToken(ctx context.Context, token string) (*User, error) {
	return c.queryUser(ctx, map[string]string{"refresh_token": token})
}

func (c *InstantClient) FindByIDAndEmail(ctx context.Context, id, email string) (*User, error) {
	return c.queryUser(ctx, map[string]string{"id": id, "email": email})
}

// queryUser runs a $users query whose where-clause ANDs every field.
func (c *InstantClient) queryUser(ctx context.Context, where map[string]string) (*User, error) {
	body := map[string]any{
		"query": map[string]any{
			"$users": map[string]any{
				"$": map[string]any{"where": where},
			},
		},
	}
	status, data, err := c.post(ctx, "/admin/query", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("instant query returned status %d: %s", status, truncate(data))
	}

	var resp struct {
		Users []User `json:"$users"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal instant query response: %w", err)
	}
	if len(resp.Users) == 0 {
		return nil, ErrNotFound
	}
	u := resp.Users[0]
	return &u, nil
}

func (c *InstantClient) post(ctx context.Context, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal instant request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.adminToken)
	req.Header.Set("App-Id", c.appID)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("instant request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read instant response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func truncate(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}
