// Package mcp tracks the lifecycle of named remote tool servers and
// dispatches tool invocations to them. Actual I/O is delegated to pluggable
// connectors, one per endpoint kind; connection attempts and invocations are
// wrapped by the retry executor.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// State is the lifecycle state of a connection.
//
// disconnected -> connecting -> connected, connecting -> error on a failed
// attempt, error -> connecting on a reconnect request, connected ->
// disconnected on explicit disconnect. There is no terminal state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Endpoint kinds understood by the registry. Factories are registered per
// kind; nothing dispatches on server names.
const (
	KindStdio  = "stdio"
	KindSSE    = "sse"
	KindHTTP   = "http"
	KindModule = "module"
)

// Common errors for registry and invoker operations.
var (
	ErrUnknownServer    = errors.New("unknown server")
	ErrUnknownKind      = errors.New("no connector registered for kind")
	ErrNotConnected     = errors.New("server not connected")
	ErrAlreadyConnected = errors.New("server already connected")
	ErrUnknownTool      = errors.New("unknown tool")
)

// ToolDescriptor is a tool advertised by a connected server. The input
// schema is advisory metadata: it documents parameters, it is not enforced.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Connector performs the wire-level operations for one endpoint.
//
// Contract:
//   - Implementations must be safe for concurrent use after Connect.
//   - Errors crossing this boundary are classified with internal/fault.
//   - Methods honor ctx cancellation and deadlines.
type Connector interface {
	// Connect establishes the connection and returns the advertised tools.
	Connect(ctx context.Context) ([]ToolDescriptor, error)

	// Disconnect tears the connection down. Idempotent.
	Disconnect() error

	// InvokeTool executes a tool with raw arguments.
	InvokeTool(ctx context.Context, name string, args map[string]any) (any, error)

	// ListTools re-fetches the advertised tools. Used as a liveness probe.
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
}

// Factory builds a connector from its opaque configuration map.
type Factory func(cfg map[string]string) (Connector, error)

// Info is a snapshot of one connection for listings.
type Info struct {
	Name          string     `json:"name"`
	Kind          string     `json:"kind"`
	Description   string     `json:"description,omitempty"`
	State         State      `json:"state"`
	Tools         int        `json:"tools"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
	ErrorCount    int        `json:"error_count"`
}
