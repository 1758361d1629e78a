package stats

import (
	"sync"
	"testing"
)

func TestSnapshot(t *testing.T) {
	c := New()
	c.ToolCalls.Add(3)
	c.Errors.Add(1)
	c.Connections.Add(2)

	s := c.Snapshot()
	if s.ToolCalls != 3 || s.Errors != 1 || s.Connections != 2 || s.MessagesSent != 0 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.ToolCalls.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := c.Snapshot().ToolCalls; got != 5000 {
		t.Errorf("ToolCalls = %d, want 5000", got)
	}
}

func TestReset(t *testing.T) {
	c := New()
	c.Errors.Add(7)
	c.Reset()
	if s := c.Snapshot(); s != (Snapshot{}) {
		t.Errorf("Reset left %+v", s)
	}
}
