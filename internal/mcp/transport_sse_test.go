package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpstudio/internal/fault"
)

func pendingCount(c *SSEConnector) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func TestSSEInvokeBeforeConnect(t *testing.T) {
	c := NewSSEConnector("http://127.0.0.1:0", time.Second)
	_, err := c.InvokeTool(context.Background(), "t", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSSECallWithoutEndpointLeavesNoPending(t *testing.T) {
	c := NewSSEConnector("http://127.0.0.1:0", time.Second)
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	_, err := c.InvokeTool(context.Background(), "t", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoint announced")
	assert.Equal(t, 0, pendingCount(c), "failed call must not leave a response slot behind")
}

func TestSSECallPostFailureLeavesNoPending(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewSSEConnector(url, time.Second)
	c.mu.Lock()
	c.connected = true
	c.postURL = url + "/messages"
	c.mu.Unlock()

	_, err := c.InvokeTool(context.Background(), "t", nil)
	require.Error(t, err)
	assert.Equal(t, fault.RetryableTransport, fault.ClassOf(err))
	assert.Equal(t, 0, pendingCount(c), "failed call must not leave a response slot behind")
}

func TestSSECallBadStatusLeavesNoPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewSSEConnector(srv.URL, time.Second)
	c.mu.Lock()
	c.connected = true
	c.postURL = srv.URL + "/messages"
	c.mu.Unlock()

	_, err := c.InvokeTool(context.Background(), "t", nil)
	require.Error(t, err)
	assert.Equal(t, 0, pendingCount(c), "failed call must not leave a response slot behind")
}
