// Package ollama is a client for the Ollama chat API, local or hosted.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

const defaultHost = "http://localhost:11434"

// Client sends non-streaming chat requests.
type Client struct {
	host       string
	apiKey     string
	think      bool
	numCtx     int
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithAPIKey sends the key as a bearer token, as hosted endpoints require.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithThink asks reasoning models to return a separate thinking channel.
func WithThink(on bool) Option {
	return func(c *Client) { c.think = on }
}

// WithNumCtx overrides the model context window; 0 keeps the model default.
func WithNumCtx(n int) Option {
	return func(c *Client) { c.numCtx = n }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a client for host. An empty host targets a local daemon.
func New(host string, opts ...Option) *Client {
	if host == "" {
		host = defaultHost
	}
	c := &Client{
		host:       strings.TrimSuffix(host, "/"),
		think:      true,
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type chatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
	Options  chatOptions          `json:"options"`
	Think    bool                 `json:"think"`
	Stream   bool                 `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Content  string `json:"content"`
		Thinking string `json:"thinking"`
	} `json:"message"`
	EvalCount    int   `json:"eval_count"`
	EvalDuration int64 `json:"eval_duration"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Chat runs one completion.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Options: chatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			NumCtx:      c.numCtx,
		},
		Think:  c.think,
		Stream: false,
	})
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("ollama: marshal chat: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("ollama: chat %s: %w", req.Model, err)
	}
	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return domain.ChatResponse{}, fmt.Errorf("ollama: decode chat: %w", err)
	}
	return domain.ChatResponse{
		Content:      cr.Message.Content,
		Thinking:     cr.Message.Thinking,
		EvalCount:    cr.EvalCount,
		EvalDuration: time.Duration(cr.EvalDuration),
	}, nil
}

// Available reports whether the endpoint answers GET /api/tags.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	return err == nil
}

// Models lists the model names the endpoint serves.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama: list models: %w", err)
	}
	var tr tagsResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("ollama: decode models: %w", err)
	}
	names := make([]string, 0, len(tr.Models))
	for _, m := range tr.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	default:
		return fmt.Errorf("HTTP %d: %s", code, body)
	}
}
