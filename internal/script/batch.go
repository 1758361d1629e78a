package script

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// BatchRunner executes a set of tool invocations either one after another or
// all at once. Results always come back in declaration order and one failed
// invocation never disturbs its siblings; failures are embedded in the
// result slice.
type BatchRunner struct {
	Tools ToolCaller
	Log   *zap.Logger
}

// Run executes the invocations. In concurrent mode every invocation runs in
// its own goroutine; callers share nothing but the process-wide counters,
// which the invoker updates atomically.
func (b *BatchRunner) Run(ctx context.Context, invocations []Invocation, concurrent bool) []ToolResult {
	results := make([]ToolResult, len(invocations))

	if !concurrent {
		for i, inv := range invocations {
			results[i] = b.runOne(ctx, inv)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, inv := range invocations {
		wg.Add(1)
		go func(i int, inv Invocation) {
			defer wg.Done()
			results[i] = b.runOne(ctx, inv)
		}(i, inv)
	}
	wg.Wait()
	return results
}

func (b *BatchRunner) runOne(ctx context.Context, inv Invocation) ToolResult {
	out := ToolResult{Server: inv.Server, Tool: inv.Tool}
	res, err := b.Tools.Invoke(ctx, inv.Server, inv.Tool, inv.Arguments)
	if err != nil {
		if b.Log != nil {
			b.Log.Warn("batch invocation failed",
				zap.String("server", inv.Server),
				zap.String("tool", inv.Tool),
				zap.Error(err))
		}
		out.Err = err.Error()
		return out
	}
	out.Result = res
	return out
}
