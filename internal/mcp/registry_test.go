package mcp

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpstudio/internal/config"
	"mcpstudio/internal/fault"
	"mcpstudio/internal/retry"
	"mcpstudio/internal/stats"
)

// fakeConnector scripts connect/invoke behavior for registry and invoker
// tests.
type fakeConnector struct {
	mu sync.Mutex

	tools []ToolDescriptor

	connectFailures int   // retryable failures before connect succeeds
	connectErr      error // fixed connect error (overrides connectFailures)
	connects        int
	disconnects     int

	invokeFailures int // retryable failures before invoke succeeds
	invokeErr      error
	invokes        int

	listErr   error
	listBlock bool
}

func (f *fakeConnector) Connect(ctx context.Context) ([]ToolDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	if f.connects <= f.connectFailures {
		return nil, fault.Transportf("connection refused")
	}
	return f.tools, nil
}

func (f *fakeConnector) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeConnector) InvokeTool(ctx context.Context, name string, args map[string]any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invokes++
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	if f.invokes <= f.invokeFailures {
		return nil, fault.Transportf("connection dropped mid-call")
	}
	return map[string]any{"tool": name, "args": args}, nil
}

func (f *fakeConnector) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	if f.listBlock {
		<-ctx.Done()
		return nil, fault.Expired(ctx.Err())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func newTestRegistry(t *testing.T, fake *fakeConnector) (*Registry, *stats.Counters, *config.File) {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	cfg.Servers["fake"] = config.Server{
		Kind:   "fake",
		Config: map[string]string{},
	}

	counters := stats.New()
	exec := &retry.Executor{BaseDelay: time.Millisecond, Counters: counters}
	reg := NewRegistry(cfg, exec, counters, nil)
	reg.RegisterFactory("fake", func(map[string]string) (Connector, error) {
		return fake, nil
	})
	return reg, counters, cfg
}

func TestConnectUnknownServer(t *testing.T) {
	reg, _, _ := newTestRegistry(t, &fakeConnector{})

	err := reg.Connect(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownServer)
	assert.Equal(t, fault.FatalInput, fault.ClassOf(err))
	assert.Equal(t, StateDisconnected, reg.State("nope"))
}

func TestConnectSuccess(t *testing.T) {
	fake := &fakeConnector{tools: []ToolDescriptor{{Name: "read_file"}, {Name: "write_file"}}}
	reg, counters, cfg := newTestRegistry(t, fake)

	require.NoError(t, reg.Connect(context.Background(), "fake"))
	assert.Equal(t, StateConnected, reg.State("fake"))

	tools, err := reg.Tools("fake")
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	assert.Equal(t, int64(1), counters.Snapshot().Connections)
	assert.NotNil(t, cfg.Servers["fake"].LastConnected)
	assert.Equal(t, 0, cfg.Servers["fake"].ErrorCount)
}

func TestConnectRetriesTransportFailures(t *testing.T) {
	fake := &fakeConnector{connectFailures: 2, tools: []ToolDescriptor{{Name: "t"}}}
	reg, _, _ := newTestRegistry(t, fake)

	require.NoError(t, reg.Connect(context.Background(), "fake"))
	assert.Equal(t, 3, fake.connects)
	assert.Equal(t, StateConnected, reg.State("fake"))
}

func TestConnectFatalFailure(t *testing.T) {
	fake := &fakeConnector{connectErr: fault.Inputf("bad config")}
	reg, _, cfg := newTestRegistry(t, fake)

	err := reg.Connect(context.Background(), "fake")
	require.Error(t, err)
	assert.Equal(t, 1, fake.connects, "fatal connect failures must not retry")
	assert.Equal(t, StateError, reg.State("fake"))
	assert.Equal(t, 1, cfg.Servers["fake"].ErrorCount)
}

func TestConnectFactoryFailure(t *testing.T) {
	reg, _, cfg := newTestRegistry(t, &fakeConnector{})
	cfg.Servers["broken"] = config.Server{Kind: "broken", Config: map[string]string{}}
	reg.RegisterFactory("broken", func(map[string]string) (Connector, error) {
		return nil, fault.Inputf("missing command")
	})

	err := reg.Connect(context.Background(), "broken")
	require.Error(t, err)
	assert.Equal(t, StateError, reg.State("broken"), "a failed attempt ends in the error state")
	assert.Equal(t, 1, cfg.Servers["broken"].ErrorCount)

	// The record recovers through the normal reconnect path.
	reg.RegisterFactory("broken", func(map[string]string) (Connector, error) {
		return &fakeConnector{}, nil
	})
	require.NoError(t, reg.Reconnect(context.Background(), "broken"))
	assert.Equal(t, StateConnected, reg.State("broken"))
}

func TestConnectUnknownKindLeavesDisconnected(t *testing.T) {
	reg, _, cfg := newTestRegistry(t, &fakeConnector{})
	cfg.Servers["odd"] = config.Server{Kind: "carrier-pigeon"}

	err := reg.Connect(context.Background(), "odd")
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, reg.State("odd"), "no attempt was started, so no error state")
}

func TestConnectAlreadyConnected(t *testing.T) {
	fake := &fakeConnector{}
	reg, _, _ := newTestRegistry(t, fake)

	require.NoError(t, reg.Connect(context.Background(), "fake"))
	err := reg.Connect(context.Background(), "fake")
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, 1, fake.connects)
}

func TestDisconnectIdempotent(t *testing.T) {
	fake := &fakeConnector{}
	reg, _, _ := newTestRegistry(t, fake)

	require.NoError(t, reg.Connect(context.Background(), "fake"))
	require.NoError(t, reg.Disconnect("fake"))
	assert.Equal(t, StateDisconnected, reg.State("fake"))

	require.NoError(t, reg.Disconnect("fake"))
	assert.Equal(t, StateDisconnected, reg.State("fake"))
	assert.Equal(t, 1, fake.disconnects)

	// Never-seen names disconnect cleanly too.
	require.NoError(t, reg.Disconnect("ghost"))
}

func TestDisconnectClearsTools(t *testing.T) {
	fake := &fakeConnector{tools: []ToolDescriptor{{Name: "t"}}}
	reg, _, _ := newTestRegistry(t, fake)

	require.NoError(t, reg.Connect(context.Background(), "fake"))
	require.NoError(t, reg.Disconnect("fake"))

	_, err := reg.Tools("fake")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestReconnect(t *testing.T) {
	fake := &fakeConnector{tools: []ToolDescriptor{{Name: "t"}}}
	reg, _, _ := newTestRegistry(t, fake)

	require.NoError(t, reg.Connect(context.Background(), "fake"))
	require.NoError(t, reg.Reconnect(context.Background(), "fake"))

	assert.Equal(t, StateConnected, reg.State("fake"))
	assert.Equal(t, 2, fake.connects)
	assert.Equal(t, 1, fake.disconnects)
}

func TestReconnectAfterError(t *testing.T) {
	fake := &fakeConnector{connectErr: fault.Remotef("boom")}
	reg, _, _ := newTestRegistry(t, fake)

	require.Error(t, reg.Connect(context.Background(), "fake"))
	assert.Equal(t, StateError, reg.State("fake"))

	fake.mu.Lock()
	fake.connectErr = nil
	fake.mu.Unlock()

	require.NoError(t, reg.Reconnect(context.Background(), "fake"))
	assert.Equal(t, StateConnected, reg.State("fake"))
}

func TestValidate(t *testing.T) {
	fake := &fakeConnector{tools: []ToolDescriptor{{Name: "t"}}}
	reg, _, _ := newTestRegistry(t, fake)

	assert.False(t, reg.Validate(context.Background(), "fake", time.Second), "disconnected servers are not alive")
	assert.False(t, reg.Validate(context.Background(), "ghost", time.Second))

	require.NoError(t, reg.Connect(context.Background(), "fake"))
	assert.True(t, reg.Validate(context.Background(), "fake", time.Second))

	fake.mu.Lock()
	fake.listErr = errors.New("gone")
	fake.mu.Unlock()
	assert.False(t, reg.Validate(context.Background(), "fake", time.Second))
	assert.Equal(t, StateConnected, reg.State("fake"), "validate must not mutate recorded state")
}

func TestValidateTimeout(t *testing.T) {
	fake := &fakeConnector{tools: []ToolDescriptor{{Name: "t"}}, listBlock: true}
	reg, _, _ := newTestRegistry(t, fake)

	require.NoError(t, reg.Connect(context.Background(), "fake"))

	start := time.Now()
	alive := reg.Validate(context.Background(), "fake", 30*time.Millisecond)
	assert.False(t, alive)
	assert.Less(t, time.Since(start), 2*time.Second, "probe must not hang")
	assert.Equal(t, StateConnected, reg.State("fake"))
}

func TestList(t *testing.T) {
	fake := &fakeConnector{tools: []ToolDescriptor{{Name: "a"}, {Name: "b"}}}
	reg, _, _ := newTestRegistry(t, fake)

	require.NoError(t, reg.Connect(context.Background(), "fake"))
	infos := reg.List()
	require.NotEmpty(t, infos)

	var found bool
	for i := 1; i < len(infos); i++ {
		assert.LessOrEqual(t, infos[i-1].Name, infos[i].Name, "listing must be sorted")
	}
	for _, info := range infos {
		if info.Name == "fake" {
			found = true
			assert.Equal(t, StateConnected, info.State)
			assert.Equal(t, 2, info.Tools)
		}
	}
	assert.True(t, found)
}

func TestUnknownKind(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	cfg.Servers["odd"] = config.Server{Kind: "carrier-pigeon"}

	reg := NewRegistry(cfg, &retry.Executor{BaseDelay: time.Millisecond}, nil, nil)
	err = reg.Connect(context.Background(), "odd")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
