package mcp

import (
	"context"
	"fmt"
	"time"

	"mcpstudio/internal/fault"
	"mcpstudio/internal/retry"
	"mcpstudio/internal/stats"
)

// invokeAttempts is the fixed retry ceiling for tool invocations: enough to
// absorb a transient connection blip without masking logical errors.
const invokeAttempts = 3

// Invoker dispatches tool calls to connected servers.
type Invoker struct {
	reg      *Registry
	exec     *retry.Executor
	counters *stats.Counters
}

// NewInvoker creates an invoker over the registry.
func NewInvoker(reg *Registry, exec *retry.Executor, counters *stats.Counters) *Invoker {
	return &Invoker{reg: reg, exec: exec, counters: counters}
}

// Invoke executes toolName on the named server with the raw argument map.
// Arguments are passed through as-is: tool schemas are advisory metadata,
// not enforced here.
func (i *Invoker) Invoke(ctx context.Context, server, toolName string, args map[string]any) (any, error) {
	c, err := i.reg.lookup(server)
	if err != nil {
		i.countError()
		return nil, err
	}

	c.mu.Lock()
	state := c.state
	connector := c.connector
	known := false
	for _, t := range c.tools {
		if t.Name == toolName {
			known = true
			break
		}
	}
	c.mu.Unlock()

	if state != StateConnected || connector == nil {
		i.countError()
		return nil, fault.Input(fmt.Errorf("%w: %s", ErrNotConnected, server))
	}
	if !known {
		i.countError()
		return nil, fault.Input(fmt.Errorf("%w: %s/%s", ErrUnknownTool, server, toolName))
	}

	op := fmt.Sprintf("invoke %s/%s", server, toolName)
	result, err := i.exec.Do(ctx, op, invokeAttempts, func(ctx context.Context) (any, error) {
		return connector.InvokeTool(ctx, toolName, args)
	})
	if err != nil {
		return nil, err
	}

	if i.counters != nil {
		i.counters.ToolCalls.Add(1)
	}
	c.mu.Lock()
	c.lastContact = time.Now().UTC()
	c.mu.Unlock()
	return result, nil
}

func (i *Invoker) countError() {
	if i.counters != nil {
		i.counters.Errors.Add(1)
	}
}
