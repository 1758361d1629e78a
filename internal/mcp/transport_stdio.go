package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"mcpstudio/internal/fault"
)

// StdioConnector runs the server as a subprocess and exchanges
// newline-delimited JSON-RPC messages over its pipes.
type StdioConnector struct {
	command string
	args    []string

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.ReadCloser
	connected bool
	nextID    int
	pending   map[int]chan *rpcResponse
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewStdioConnector creates a connector that will spawn the given command
// line ("npx server-foo --flag" style, split on whitespace).
func NewStdioConnector(commandLine string) *StdioConnector {
	parts := strings.Fields(commandLine)
	var cmd string
	var args []string
	if len(parts) > 0 {
		cmd = parts[0]
		args = parts[1:]
	}
	return &StdioConnector{
		command: cmd,
		args:    args,
		nextID:  1,
		pending: make(map[int]chan *rpcResponse),
	}
}

// NewStdioConnectorFromConfig is the factory for the stdio endpoint kind.
func NewStdioConnectorFromConfig(cfg map[string]string) (Connector, error) {
	if strings.TrimSpace(cfg["command"]) == "" {
		return nil, fault.Inputf("stdio connector: missing command")
	}
	return NewStdioConnector(cfg["command"]), nil
}

// Connect spawns the subprocess, starts the reader loop and fetches tools.
func (c *StdioConnector) Connect(ctx context.Context) ([]ToolDescriptor, error) {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	if c.command == "" {
		c.mu.Unlock()
		return nil, fault.Inputf("stdio connector: empty command")
	}

	cmd := exec.Command(c.command, c.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.mu.Unlock()
		return nil, fault.Transportf("stdin pipe: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return nil, fault.Transportf("stdout pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return nil, fault.Transportf("spawn %s: %v", c.command, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout
	c.connected = true
	c.done = make(chan struct{})

	c.wg.Add(1)
	go c.readLoop(stdout)
	c.mu.Unlock()

	if _, err := c.call(ctx, "initialize", nil); err != nil {
		_ = c.Disconnect()
		return nil, fmt.Errorf("initialize %s: %w", c.command, err)
	}
	raw, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		_ = c.Disconnect()
		return nil, fmt.Errorf("list tools from %s: %w", c.command, err)
	}
	tools, err := decodeToolsList(raw)
	if err != nil {
		_ = c.Disconnect()
		return nil, fault.Remotef("parse tools list: %v", err)
	}
	return tools, nil
}

// Disconnect kills the subprocess and unblocks pending callers. Idempotent.
func (c *StdioConnector) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false

	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	close(c.done)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		if c.cmd != nil {
			_ = c.cmd.Wait()
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
	}
	return nil
}

// InvokeTool executes a tool via tools/call.
func (c *StdioConnector) InvokeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	raw, err := c.call(ctx, "tools/call", callParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return decodeResult(raw)
}

// ListTools re-fetches the advertised tools.
func (c *StdioConnector) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
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

// readLoop dispatches response lines to pending callers by request id.
func (c *StdioConnector) readLoop(stdout io.Reader) {
	defer c.wg.Done()
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			// Server chatter that is not JSON-RPC; ignore.
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
			ch <- &resp
		}
		c.mu.Unlock()
	}
}

func (c *StdioConnector) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, fault.Transport(ErrNotConnected)
	}
	id := c.nextID
	c.nextID++
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	done := c.done

	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fault.Inputf("marshal %s request: %v", method, err)
	}
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fault.Transportf("write to %s: %v", c.command, err)
	}
	c.mu.Unlock()

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, fault.Transportf("%s closed the connection", c.command)
		}
		if resp.Error != nil {
			return nil, fault.Remotef("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-done:
		return nil, fault.Transportf("%s disconnected", c.command)
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
