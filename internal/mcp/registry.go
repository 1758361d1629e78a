package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"mcpstudio/internal/config"
	"mcpstudio/internal/fault"
	"mcpstudio/internal/retry"
	"mcpstudio/internal/stats"
)

// Registry holds the known remote servers and their lifecycle state.
// Transitions for a given name are serialized by a per-connection lock;
// operations on different names proceed independently.
type Registry struct {
	mu        sync.RWMutex
	conns     map[string]*conn
	factories map[string]Factory

	cfg      *config.File
	exec     *retry.Executor
	counters *stats.Counters
	log      *zap.Logger
}

// conn is the registry-owned record for one server.
type conn struct {
	mu sync.Mutex

	name        string
	kind        string
	state       State
	connector   Connector
	tools       []ToolDescriptor
	lastContact time.Time
	consecErrs  int
}

// NewRegistry creates a registry over the given configuration blob.
func NewRegistry(cfg *config.File, exec *retry.Executor, counters *stats.Counters, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		conns:     make(map[string]*conn),
		factories: make(map[string]Factory),
		cfg:       cfg,
		exec:      exec,
		counters:  counters,
		log:       log,
	}
}

// RegisterFactory registers the connector factory for an endpoint kind.
func (r *Registry) RegisterFactory(kind string, factory Factory) {
	if kind == "" || factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// RegisterDefaultFactories wires the built-in transports. The module kind is
// provided by its own package and registered by the caller.
func (r *Registry) RegisterDefaultFactories() {
	r.RegisterFactory(KindStdio, NewStdioConnectorFromConfig)
	r.RegisterFactory(KindSSE, NewSSEConnectorFromConfig)
	r.RegisterFactory(KindHTTP, NewHTTPConnectorFromConfig)
}

// Connect brings the named server up. Calling it on an already-connected
// server is a no-op returning ErrAlreadyConnected; callers that want toggle
// behavior check the state first and disconnect explicitly.
func (r *Registry) Connect(ctx context.Context, name string) error {
	c, err := r.record(name)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected {
		return fmt.Errorf("%w: %s", ErrAlreadyConnected, name)
	}

	r.mu.RLock()
	factory, ok := r.factories[c.kind]
	srv := r.cfg.Servers[name]
	r.mu.RUnlock()
	if !ok {
		return fault.Input(fmt.Errorf("%w %q (server %s)", ErrUnknownKind, c.kind, name))
	}

	// The attempt starts here: construction failures and wire failures
	// both move connecting -> error.
	c.state = StateConnecting

	connector, err := factory(srv.Config)
	if err != nil {
		c.state = StateError
		c.consecErrs++
		r.noteFailure(name)
		return fmt.Errorf("connect %s: %w", name, err)
	}

	result, err := r.exec.Do(ctx, "connect "+name, retry.DefaultAttempts, func(ctx context.Context) (any, error) {
		return connector.Connect(ctx)
	})
	if err != nil {
		c.state = StateError
		c.consecErrs++
		r.noteFailure(name)
		return fmt.Errorf("connect %s: %w", name, err)
	}

	tools, _ := result.([]ToolDescriptor)
	now := time.Now().UTC()

	// State and capability list change together, under the per-name lock.
	c.connector = connector
	c.tools = tools
	c.state = StateConnected
	c.lastContact = now
	c.consecErrs = 0

	if r.counters != nil {
		r.counters.Connections.Add(1)
	}
	r.noteSuccess(name, now)
	r.log.Info("connected",
		zap.String("server", name),
		zap.String("kind", c.kind),
		zap.Int("tools", len(tools)))
	return nil
}

// Disconnect tears the named server down. Idempotent: disconnecting an
// unknown or already-disconnected server succeeds and leaves the state
// disconnected.
func (r *Registry) Disconnect(name string) error {
	r.mu.RLock()
	c, ok := r.conns[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connector != nil {
		if err := c.connector.Disconnect(); err != nil {
			r.log.Warn("teardown", zap.String("server", name), zap.Error(err))
		}
	}
	wasConnected := c.state == StateConnected
	c.connector = nil
	c.tools = nil
	c.state = StateDisconnected

	if wasConnected {
		r.saveConfig()
		r.log.Info("disconnected", zap.String("server", name))
	}
	return nil
}

// Reconnect disconnects if needed and connects again.
func (r *Registry) Reconnect(ctx context.Context, name string) error {
	if err := r.Disconnect(name); err != nil {
		return fmt.Errorf("reconnect %s: %w", name, err)
	}
	if err := r.Connect(ctx, name); err != nil {
		return fmt.Errorf("reconnect %s: %w", name, err)
	}
	return nil
}

// Validate probes the named server with a bounded tools/list call. It never
// returns an error and never mutates recorded state; any failure, including
// timeout, reads as "not alive".
func (r *Registry) Validate(ctx context.Context, name string, timeout time.Duration) bool {
	r.mu.RLock()
	c, ok := r.conns[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	c.mu.Lock()
	connector := c.connector
	state := c.state
	c.mu.Unlock()
	if state != StateConnected || connector == nil {
		return false
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := connector.ListTools(probeCtx)
	return err == nil
}

// State returns the recorded lifecycle state for name.
func (r *Registry) State(name string) State {
	r.mu.RLock()
	c, ok := r.conns[name]
	r.mu.RUnlock()
	if !ok {
		return StateDisconnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tools returns the capability list recorded for a connected server.
func (r *Registry) Tools(name string) ([]ToolDescriptor, error) {
	r.mu.RLock()
	c, ok := r.conns[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fault.Input(fmt.Errorf("%w: %s", ErrUnknownServer, name))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return nil, fault.Input(fmt.Errorf("%w: %s", ErrNotConnected, name))
	}
	out := make([]ToolDescriptor, len(c.tools))
	copy(out, c.tools)
	return out, nil
}

// List returns a snapshot of every configured server, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	names := make([]string, 0, len(r.cfg.Servers))
	for name := range r.cfg.Servers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	out := make([]Info, 0, len(names))
	for _, name := range names {
		r.mu.RLock()
		srv := r.cfg.Servers[name]
		c := r.conns[name]
		r.mu.RUnlock()

		info := Info{
			Name:          name,
			Kind:          srv.Kind,
			Description:   srv.Description,
			State:         StateDisconnected,
			LastConnected: srv.LastConnected,
			ErrorCount:    srv.ErrorCount,
		}
		if c != nil {
			c.mu.Lock()
			info.State = c.state
			info.Tools = len(c.tools)
			c.mu.Unlock()
		}
		out = append(out, info)
	}
	return out
}

// record returns the connection record for name, creating it from the
// configuration blob on first use.
func (r *Registry) record(name string) (*conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[name]; ok {
		return c, nil
	}
	srv, ok := r.cfg.Servers[name]
	if !ok {
		return nil, fault.Input(fmt.Errorf("%w: %s", ErrUnknownServer, name))
	}
	c := &conn{name: name, kind: srv.Kind, state: StateDisconnected}
	r.conns[name] = c
	return c, nil
}

// lookup returns an existing record without creating one.
func (r *Registry) lookup(name string) (*conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.conns[name]; ok {
		return c, nil
	}
	if _, ok := r.cfg.Servers[name]; ok {
		return nil, fault.Input(fmt.Errorf("%w: %s", ErrNotConnected, name))
	}
	return nil, fault.Input(fmt.Errorf("%w: %s", ErrUnknownServer, name))
}

func (r *Registry) noteSuccess(name string, at time.Time) {
	r.mu.Lock()
	r.cfg.Touch(name, at)
	r.mu.Unlock()
	r.saveConfig()
}

func (r *Registry) noteFailure(name string) {
	r.mu.Lock()
	r.cfg.RecordError(name)
	r.mu.Unlock()
	r.saveConfig()
}

func (r *Registry) saveConfig() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cfg.Save(); err != nil {
		r.log.Warn("persist config", zap.Error(err))
	}
}
