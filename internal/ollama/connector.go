package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"mcpstudio/internal/fault"
	"mcpstudio/internal/mcp"
)

const DefaultModel = "llama3.1"

// Connector runs the Ollama daemon as an in-process tool server. Unlike the
// wire transports it never spawns a child or holds a socket open; every tool
// call is a fresh request against the daemon's REST API.
type Connector struct {
	client       *Client
	defaultModel string

	mu        sync.RWMutex
	connected bool
	models    []string
}

// NewConnector creates a connector against the given daemon URL. model is the
// fallback when a tool call omits one.
func NewConnector(baseURL, model string, timeout time.Duration) *Connector {
	if model == "" {
		model = DefaultModel
	}
	return &Connector{client: NewClient(baseURL, timeout), defaultModel: model}
}

// NewConnectorFromConfig is the factory for the in-process module kind.
func NewConnectorFromConfig(cfg map[string]string) (mcp.Connector, error) {
	timeout, _ := time.ParseDuration(cfg["timeout"])
	return NewConnector(cfg["base_url"], cfg["model"], timeout), nil
}

// Connect probes the daemon and caches its installed models.
func (c *Connector) Connect(ctx context.Context) ([]mcp.ToolDescriptor, error) {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("ollama probe: %w", err)
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}

	c.mu.Lock()
	c.connected = true
	c.models = names
	c.mu.Unlock()
	return toolDescriptors(), nil
}

// Disconnect drops the cached state. There is no session to close.
func (c *Connector) Disconnect() error {
	c.mu.Lock()
	c.connected = false
	c.models = nil
	c.mu.Unlock()
	return nil
}

// ListTools reports the fixed tool surface; it doubles as a liveness probe
// against the daemon.
func (c *Connector) ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error) {
	if !c.isConnected() {
		return nil, fault.Transport(mcp.ErrNotConnected)
	}
	if _, err := c.client.ListModels(ctx); err != nil {
		return nil, err
	}
	return toolDescriptors(), nil
}

// InvokeTool dispatches one of the ollama_* tools.
func (c *Connector) InvokeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if !c.isConnected() {
		return nil, fault.Transport(mcp.ErrNotConnected)
	}

	switch name {
	case "ollama_generate":
		return c.invokeGenerate(ctx, args)
	case "ollama_chat":
		return c.invokeChat(ctx, args)
	case "ollama_list_models":
		models, err := c.client.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"models": models}, nil
	case "ollama_pull_model":
		model := argString(args, "model_name")
		if model == "" {
			return nil, fault.Inputf("ollama_pull_model: missing model_name")
		}
		if err := c.client.Pull(ctx, model); err != nil {
			return nil, err
		}
		c.refreshModels(ctx)
		return map[string]any{"status": "success", "model": model}, nil
	case "ollama_model_info":
		model := argString(args, "model_name")
		if model == "" {
			return nil, fault.Inputf("ollama_model_info: missing model_name")
		}
		info, err := c.client.Show(ctx, model)
		if err != nil {
			return nil, err
		}
		return map[string]any{"model": model, "info": info}, nil
	default:
		return nil, fault.Input(fmt.Errorf("%w: %s", mcp.ErrUnknownTool, name))
	}
}

// Chat sends a conversation to the daemon and returns the assistant reply.
// The interactive chat surface uses this directly rather than going through
// tool dispatch.
func (c *Connector) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	if model == "" {
		model = c.defaultModel
	}
	res, err := c.client.Chat(ctx, ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", err
	}
	return res.Message.Content, nil
}

// DefaultModel reports the model used when a call omits one.
func (c *Connector) DefaultModel() string { return c.defaultModel }

func (c *Connector) invokeGenerate(ctx context.Context, args map[string]any) (any, error) {
	model := argString(args, "model")
	if model == "" {
		model = c.defaultModel
	}
	prompt := argString(args, "prompt")
	if prompt == "" {
		return nil, fault.Inputf("ollama_generate: missing prompt")
	}
	if known := c.knownModels(); len(known) > 0 && !contains(known, model) {
		return nil, fault.Inputf("model %q not installed (have: %v)", model, known)
	}

	res, err := c.client.Generate(ctx, GenerateRequest{
		Model:  model,
		Prompt: prompt,
		System: argString(args, "system"),
		Options: map[string]any{
			"temperature": argFloat(args, "temperature", 0.7),
			"num_predict": argInt(args, "max_tokens", 512),
		},
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"response":          res.Response,
		"model":             res.Model,
		"total_duration":    res.TotalDuration,
		"load_duration":     res.LoadDuration,
		"prompt_eval_count": res.PromptEvalCount,
		"eval_count":        res.EvalCount,
	}, nil
}

func (c *Connector) invokeChat(ctx context.Context, args map[string]any) (any, error) {
	model := argString(args, "model")
	if model == "" {
		model = c.defaultModel
	}
	messages, err := argMessages(args, "messages")
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, fault.Inputf("ollama_chat: missing messages")
	}

	res, err := c.client.Chat(ctx, ChatRequest{
		Model:    model,
		Messages: messages,
		Options:  map[string]any{"temperature": argFloat(args, "temperature", 0.7)},
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":        map[string]any{"role": res.Message.Role, "content": res.Message.Content},
		"model":          res.Model,
		"total_duration": res.TotalDuration,
		"load_duration":  res.LoadDuration,
	}, nil
}

func (c *Connector) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Connector) knownModels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.models
}

func (c *Connector) refreshModels(ctx context.Context) {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		return
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	c.mu.Lock()
	c.models = names
	c.mu.Unlock()
}

func toolDescriptors() []mcp.ToolDescriptor {
	return []mcp.ToolDescriptor{
		{
			Name:        "ollama_generate",
			Description: "Generate text from a prompt using a local Ollama model",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"model":{"type":"string"},"prompt":{"type":"string"},"system":{"type":"string"},"temperature":{"type":"number"},"max_tokens":{"type":"integer"}},"required":["prompt"]}`),
		},
		{
			Name:        "ollama_chat",
			Description: "Chat with a local Ollama model using message history",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"model":{"type":"string"},"messages":{"type":"array","items":{"type":"object","properties":{"role":{"type":"string","enum":["user","assistant","system"]},"content":{"type":"string"}},"required":["role","content"]}},"temperature":{"type":"number"}},"required":["messages"]}`),
		},
		{
			Name:        "ollama_list_models",
			Description: "List installed Ollama models",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		},
		{
			Name:        "ollama_pull_model",
			Description: "Download a model from the Ollama library",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"model_name":{"type":"string"}},"required":["model_name"]}`),
		},
		{
			Name:        "ollama_model_info",
			Description: "Show detail for an installed model",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"model_name":{"type":"string"}},"required":["model_name"]}`),
		},
	}
}

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argFloat(args map[string]any, key string, def float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func argMessages(args map[string]any, key string) ([]Message, error) {
	raw, ok := args[key]
	if !ok {
		return nil, nil
	}
	// Arguments arrive as decoded JSON, so round-trip through the codec
	// instead of walking the any tree by hand.
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fault.Inputf("ollama_chat: bad messages: %v", err)
	}
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, fault.Inputf("ollama_chat: bad messages: %v", err)
	}
	for _, m := range msgs {
		if m.Role == "" || m.Content == "" {
			return nil, fault.Inputf("ollama_chat: message missing role or content")
		}
	}
	return msgs, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
