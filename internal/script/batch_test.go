package script

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchSequentialOrder(t *testing.T) {
	tools := &fakeCaller{results: map[string]any{
		"fs/a": "ra",
		"fs/b": "rb",
		"fs/c": "rc",
	}}
	b := &BatchRunner{Tools: tools}

	results := b.Run(context.Background(), []Invocation{
		{Server: "fs", Tool: "a"},
		{Server: "fs", Tool: "b"},
		{Server: "fs", Tool: "c"},
	}, false)

	require.Len(t, results, 3)
	assert.Equal(t, "ra", results[0].Result)
	assert.Equal(t, "rb", results[1].Result)
	assert.Equal(t, "rc", results[2].Result)
	// Sequential mode preserves call order too.
	assert.Equal(t, "a", tools.calls[0].Tool)
	assert.Equal(t, "c", tools.calls[2].Tool)
}

func TestBatchConcurrentDeclarationOrder(t *testing.T) {
	tools := &fakeCaller{
		delay: 5 * time.Millisecond,
		results: map[string]any{
			"fs/a": "ra",
			"fs/b": "rb",
			"fs/c": "rc",
		},
		errs: map[string]error{"fs/b": fmt.Errorf("boom")},
	}
	b := &BatchRunner{Tools: tools}

	results := b.Run(context.Background(), []Invocation{
		{Server: "fs", Tool: "a"},
		{Server: "fs", Tool: "b"},
		{Server: "fs", Tool: "c"},
	}, true)

	require.Len(t, results, 3)
	assert.Equal(t, "ra", results[0].Result)
	assert.Equal(t, "boom", results[1].Err, "failure stays in its own slot")
	assert.Equal(t, "rc", results[2].Result, "siblings are unaffected")
}

func TestBatchConcurrentSpeedup(t *testing.T) {
	tools := &fakeCaller{delay: 30 * time.Millisecond}
	b := &BatchRunner{Tools: tools}

	invs := make([]Invocation, 8)
	for i := range invs {
		invs[i] = Invocation{Server: "fs", Tool: fmt.Sprintf("t%d", i)}
	}

	start := time.Now()
	results := b.Run(context.Background(), invs, true)
	elapsed := time.Since(start)

	require.Len(t, results, 8)
	assert.Less(t, elapsed, 8*30*time.Millisecond, "invocations must overlap")
}

func TestBatchEmpty(t *testing.T) {
	b := &BatchRunner{Tools: &fakeCaller{}}
	assert.Empty(t, b.Run(context.Background(), nil, true))
}
