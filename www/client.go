package www

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"remy/llm"
	"remy/pipeline"
)

// Client talks to a running server on behalf of the CLI commands.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    http.DefaultClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (pipeline.Status, error) {
	var st pipeline.Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &st)
	return st, err
}

func (c *Client) SetRecipe(ctx context.Context, name string, steps []string) error {
	return c.do(ctx, http.MethodPost, "/recipe", recipeRequest{Name: name, Steps: steps}, nil)
}

func (c *Client) SetStep(ctx context.Context, step string) error {
	return c.do(ctx, http.MethodPost, "/recipe/set-step", stepRequest{Step: step}, nil)
}

// Start asks the server to start the pipeline. A false result with a
// message means it was already running.
func (c *Client) Start(ctx context.Context, systemPrompt string) (bool, string, error) {
	var resp okResponse
	err := c.do(ctx, http.MethodPost, "/camera/start", startRequest{SystemPrompt: systemPrompt}, &resp)
	return resp.OK, resp.Message, err
}

func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/camera/stop", nil, nil)
}

func (c *Client) Caution(ctx context.Context, step string) (*llm.Caution, error) {
	var caution *llm.Caution
	err := c.do(ctx, http.MethodGet, "/step/caution?step="+url.QueryEscape(step), nil, &caution)
	return caution, err
}

// WebsocketURL is the ws:// address of the result stream.
func (c *Client) WebsocketURL() string {
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}
