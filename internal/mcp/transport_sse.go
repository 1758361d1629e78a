package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mcpstudio/internal/fault"
)

// SSEConnector speaks JSON-RPC over a Server-Sent Events pair: a long-lived
// GET stream delivers responses, requests are POSTed to the endpoint URL the
// server announces in its first "endpoint" event.
type SSEConnector struct {
	baseURL string
	timeout time.Duration
	client  *http.Client

	mu        sync.Mutex
	connected bool
	postURL   string
	cancel    context.CancelFunc
	pending   map[int]chan *rpcResponse
	nextID    int
	endpoint  chan struct{}
	epOnce    sync.Once
}

// NewSSEConnector creates a connector for an SSE endpoint URL.
func NewSSEConnector(baseURL string, timeout time.Duration) *SSEConnector {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SSEConnector{
		baseURL:  baseURL,
		timeout:  timeout,
		client:   &http.Client{},
		pending:  make(map[int]chan *rpcResponse),
		nextID:   1,
		endpoint: make(chan struct{}),
	}
}

// NewSSEConnectorFromConfig is the factory for the sse endpoint kind.
func NewSSEConnectorFromConfig(cfg map[string]string) (Connector, error) {
	raw := strings.TrimSpace(cfg["url"])
	if raw == "" {
		return nil, fault.Inputf("sse connector: missing url")
	}
	if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fault.Inputf("sse connector: malformed url %q", raw)
	}
	timeout, _ := time.ParseDuration(cfg["timeout"])
	return NewSSEConnector(raw, timeout), nil
}

// Connect opens the event stream, waits for the endpoint announcement and
// fetches the tool list.
func (c *SSEConnector) Connect(ctx context.Context) ([]ToolDescriptor, error) {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fault.Inputf("sse request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Transport(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fault.Transportf("sse endpoint returned status %d", resp.StatusCode)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(readCtx, resp.Body)

	select {
	case <-c.endpoint:
	case <-ctx.Done():
		_ = c.Disconnect()
		return nil, fault.Expired(ctx.Err())
	case <-time.After(c.timeout):
		_ = c.Disconnect()
		return nil, fault.Expired(errTimeoutWaitingEndpoint)
	}

	if _, err := c.call(ctx, "initialize", nil); err != nil {
		_ = c.Disconnect()
		return nil, err
	}
	tools, err := c.ListTools(ctx)
	if err != nil {
		_ = c.Disconnect()
		return nil, err
	}
	return tools, nil
}

var errTimeoutWaitingEndpoint = &timeoutError{"timeout waiting for endpoint event"}

type timeoutError struct{ msg string }

func (e *timeoutError) Error() string { return e.msg }

// Disconnect closes the stream and unblocks pending callers. Idempotent.
func (c *SSEConnector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.connected = false
	c.postURL = ""
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	return nil
}

// InvokeTool executes a tool via tools/call.
func (c *SSEConnector) InvokeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	raw, err := c.call(ctx, "tools/call", callParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return decodeResult(raw)
}

// ListTools re-fetches the advertised tools.
func (c *SSEConnector) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
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

// readLoop parses the event stream and routes responses by request id.
func (c *SSEConnector) readLoop(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	eventType := "message"
	var data bytes.Buffer

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			c.handleEvent(eventType, strings.TrimSuffix(data.String(), "\n"))
			eventType = "message"
			data.Reset()
			continue
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data.WriteString(strings.TrimPrefix(line, "data: "))
			data.WriteByte('\n')
		case strings.HasPrefix(line, ":"):
			// Comment keep-alive.
		}
	}

	// Stream ended: the server went away.
	c.mu.Lock()
	c.connected = false
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *SSEConnector) handleEvent(eventType, data string) {
	switch eventType {
	case "endpoint":
		c.mu.Lock()
		c.postURL = data
		c.mu.Unlock()
		c.epOnce.Do(func() { close(c.endpoint) })
	case "message":
		var resp rpcResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *SSEConnector) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, fault.Transport(ErrNotConnected)
	}
	postURL := c.postURL
	if postURL == "" {
		c.mu.Unlock()
		return nil, fault.Transportf("no endpoint announced by %s", c.baseURL)
	}
	id := c.nextID
	c.nextID++
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		c.dropPending(id)
		return nil, fault.Inputf("marshal %s request: %v", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolveURL(postURL), bytes.NewReader(body))
	if err != nil {
		c.dropPending(id)
		return nil, fault.Inputf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		c.dropPending(id)
		return nil, fault.Transport(err)
	}
	io.Copy(io.Discard, httpResp.Body)
	httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		c.dropPending(id)
		return nil, fault.Transportf("sse post returned status %d", httpResp.StatusCode)
	}

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, fault.Transportf("sse stream closed")
		}
		if resp.Error != nil {
			return nil, fault.Remotef("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-time.After(c.timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fault.Expired(&timeoutError{"timeout waiting for " + method + " response"})
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fault.Expired(ctx.Err())
		}
		return nil, ctx.Err()
	}
}

// dropPending removes a response slot whose request never made it out.
func (c *SSEConnector) dropPending(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// resolveURL makes the announced endpoint absolute against the stream URL.
func (c *SSEConnector) resolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return endpoint
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return base.ResolveReference(ref).String()
}
