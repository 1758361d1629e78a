// Package stats holds the process-wide usage counters. A single Counters
// value is created at startup and shared by handle; concurrent batch
// execution increments from multiple goroutines, so all fields are atomic.
package stats

import "sync/atomic"

// Counters tracks tool calls, errors, connections and chat messages.
type Counters struct {
	ToolCalls    atomic.Int64
	Errors       atomic.Int64
	Connections  atomic.Int64
	MessagesSent atomic.Int64
}

// New returns a zeroed counter set.
func New() *Counters {
	return &Counters{}
}

// Snapshot is a point-in-time copy for display.
type Snapshot struct {
	ToolCalls    int64 `json:"tool_calls"`
	Errors       int64 `json:"errors"`
	Connections  int64 `json:"connections"`
	MessagesSent int64 `json:"messages_sent"`
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		ToolCalls:    c.ToolCalls.Load(),
		Errors:       c.Errors.Load(),
		Connections:  c.Connections.Load(),
		MessagesSent: c.MessagesSent.Load(),
	}
}

// Reset zeroes all counters.
func (c *Counters) Reset() {
	c.ToolCalls.Store(0)
	c.Errors.Store(0)
	c.Connections.Store(0)
	c.MessagesSent.Store(0)
}
