// Package ollama talks to a local Ollama daemon and exposes it as an
// in-process tool server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"mcpstudio/internal/fault"
)

const DefaultBaseURL = "http://localhost:11434"

// Client is a thin HTTP client for the Ollama REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Model describes one entry from /api/tags.
type Model struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest drives /api/generate.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateResult is the non-streaming /api/generate response.
type GenerateResult struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	TotalDuration   int64  `json:"total_duration"`
	LoadDuration    int64  `json:"load_duration"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// ChatRequest drives /api/chat.
type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// ChatResult is the non-streaming /api/chat response.
type ChatResult struct {
	Model         string  `json:"model"`
	Message       Message `json:"message"`
	TotalDuration int64   `json:"total_duration"`
	LoadDuration  int64   `json:"load_duration"`
}

// ListModels returns the locally installed models.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var out struct {
		Models []Model `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// Generate runs a single-shot completion.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	req.Stream = false
	var out GenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat runs a chat completion over a message history.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	req.Stream = false
	var out ChatResult
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pull downloads a model from the Ollama library.
func (c *Client) Pull(ctx context.Context, name string) error {
	body := map[string]any{"name": name, "stream": false}
	return c.do(ctx, http.MethodPost, "/api/pull", body, nil)
}

// Show returns the daemon's detail record for a model.
func (c *Client) Show(ctx context.Context, name string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodPost, "/api/show", map[string]any{"name": name}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fault.Inputf("marshal %s request: %v", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fault.Inputf("build %s request: %v", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fault.Expired(err)
		}
		return fault.Transport(err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return fault.Remotef("ollama %s: http %d: %s", path, res.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fault.Remotef("decode %s response: %v", path, err)
	}
	return nil
}
