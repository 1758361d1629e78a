package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpstudio/internal/fault"
	"mcpstudio/internal/retry"
	"mcpstudio/internal/stats"
)

func newTestInvoker(t *testing.T, fake *fakeConnector) (*Invoker, *Registry, *stats.Counters) {
	t.Helper()
	reg, counters, _ := newTestRegistry(t, fake)
	exec := &retry.Executor{BaseDelay: time.Millisecond, Counters: counters}
	return NewInvoker(reg, exec, counters), reg, counters
}

func TestInvokeNotConnected(t *testing.T) {
	inv, _, st := newTestInvoker(t, &fakeConnector{})

	_, err := inv.Invoke(context.Background(), "fake", "anything", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, fault.FatalInput, fault.ClassOf(err))
	assert.Equal(t, int64(1), st.Snapshot().Errors)
}

func TestInvokeUnknownServer(t *testing.T) {
	inv, _, _ := newTestInvoker(t, &fakeConnector{})

	_, err := inv.Invoke(context.Background(), "ghost", "t", nil)
	assert.ErrorIs(t, err, ErrUnknownServer)
}

func TestInvokeUnknownTool(t *testing.T) {
	fake := &fakeConnector{tools: []ToolDescriptor{{Name: "read_file"}}}
	inv, reg, _ := newTestInvoker(t, fake)
	require.NoError(t, reg.Connect(context.Background(), "fake"))

	_, err := inv.Invoke(context.Background(), "fake", "frobnicate", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.Equal(t, 0, fake.invokes, "unknown tools must not reach the connector")
}

func TestInvokeSuccess(t *testing.T) {
	fake := &fakeConnector{tools: []ToolDescriptor{{Name: "read_file"}}}
	inv, reg, st := newTestInvoker(t, fake)
	require.NoError(t, reg.Connect(context.Background(), "fake"))

	result, err := inv.Invoke(context.Background(), "fake", "read_file", map[string]any{"path": "x"})
	require.NoError(t, err)
	m, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "read_file", m["tool"])
	assert.Equal(t, int64(1), st.Snapshot().ToolCalls)
	assert.Equal(t, int64(0), st.Snapshot().Errors)
}

func TestInvokeRetriesTransportDrop(t *testing.T) {
	fake := &fakeConnector{
		tools:          []ToolDescriptor{{Name: "t"}},
		invokeFailures: 2,
	}
	inv, reg, _ := newTestInvoker(t, fake)
	require.NoError(t, reg.Connect(context.Background(), "fake"))

	_, err := inv.Invoke(context.Background(), "fake", "t", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.invokes, "connection drops mid-call are retried")
}

func TestInvokeRemoteErrorIsFatal(t *testing.T) {
	fake := &fakeConnector{
		tools:     []ToolDescriptor{{Name: "t"}},
		invokeErr: fault.Remotef("application error"),
	}
	inv, reg, st := newTestInvoker(t, fake)
	require.NoError(t, reg.Connect(context.Background(), "fake"))

	_, err := inv.Invoke(context.Background(), "fake", "t", nil)
	require.Error(t, err)

	var ex *retry.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 1, ex.Attempts, "remote application errors are not retried")
	assert.Equal(t, 1, fake.invokes)
	assert.Equal(t, int64(1), st.Snapshot().Errors)
	assert.Equal(t, int64(0), st.Snapshot().ToolCalls)
}
