package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mcpstudio/internal/fault"
)

// HTTPConnector speaks JSON-RPC 2.0 over plain HTTP POST.
type HTTPConnector struct {
	url     string
	timeout time.Duration
	client  *http.Client

	mu        sync.RWMutex
	connected bool
	nextID    atomic.Int64
}

// NewHTTPConnector creates a connector for a JSON-RPC endpoint URL.
func NewHTTPConnector(url string, timeout time.Duration) *HTTPConnector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPConnector{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewHTTPConnectorFromConfig is the factory for the http endpoint kind.
func NewHTTPConnectorFromConfig(cfg map[string]string) (Connector, error) {
	url := strings.TrimSpace(cfg["url"])
	if url == "" {
		return nil, fault.Inputf("http connector: missing url")
	}
	timeout, _ := time.ParseDuration(cfg["timeout"])
	return NewHTTPConnector(url, timeout), nil
}

// Connect verifies the endpoint responds to initialize and returns its tools.
func (c *HTTPConnector) Connect(ctx context.Context) ([]ToolDescriptor, error) {
	if _, err := c.call(ctx, "initialize", nil); err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.url, err)
	}
	tools, err := c.fetchTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return tools, nil
}

// Disconnect marks the connector offline. HTTP is stateless, nothing to tear
// down on the wire.
func (c *HTTPConnector) Disconnect() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// InvokeTool executes a tool via tools/call.
func (c *HTTPConnector) InvokeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if !c.isConnected() {
		return nil, fault.Transport(ErrNotConnected)
	}
	raw, err := c.call(ctx, "tools/call", callParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return decodeResult(raw)
}

// ListTools re-fetches the advertised tools.
func (c *HTTPConnector) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	if !c.isConnected() {
		return nil, fault.Transport(ErrNotConnected)
	}
	return c.fetchTools(ctx)
}

func (c *HTTPConnector) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *HTTPConnector) fetchTools(ctx context.Context) ([]ToolDescriptor, error) {
	raw, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	tools, err := decodeToolsList(raw)
	if err != nil {
		return nil, fault.Remotef("parse tools list: %v", err)
	}
	return tools, nil
}

func (c *HTTPConnector) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      int(c.nextID.Add(1)),
		Method:  method,
		Params:  params,
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fault.Inputf("marshal %s request: %v", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, fault.Inputf("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fault.Expired(err)
		}
		return nil, fault.Transport(err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		// Client errors will not succeed on a retry; only server-side
		// failures are worth another attempt.
		if res.StatusCode/100 == 4 {
			return nil, fault.Remotef("http %d from %s", res.StatusCode, c.url)
		}
		return nil, fault.Transportf("http %d from %s", res.StatusCode, c.url)
	}

	var resp rpcResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fault.Transportf("decode %s response: %v", method, err)
	}
	if resp.Error != nil {
		return nil, fault.Remotef("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}
