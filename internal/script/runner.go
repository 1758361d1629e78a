package script

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"mcpstudio/internal/stats"
)

// ToolCaller executes a single tool against a named server.
// mcp.Invoker satisfies it.
type ToolCaller interface {
	Invoke(ctx context.Context, server, tool string, args map[string]any) (any, error)
}

// Chatter sends one chat message to a model and returns the reply.
type Chatter interface {
	Chat(ctx context.Context, model, message string) (any, error)
}

// resultRef matches {{result.<step name>}} references in step arguments.
var resultRef = regexp.MustCompile(`\{\{result\.([^}]+)\}\}`)

const previousRef = "{{previous_result}}"

// Runner executes scripts strictly in order. Later steps may reference
// earlier results, so there is no intra-script parallelism; batch steps get
// their parallelism from BatchRunner.
type Runner struct {
	Tools    ToolCaller
	Chat     Chatter // nil when no chat backend is connected
	Batch    *BatchRunner
	Log      *zap.Logger
	Counters *stats.Counters

	// LoadBatch resolves a batch step's file reference. Defaults to
	// LoadBatchFile.
	LoadBatch func(path string) (*Batch, error)
}

// Run executes the script and returns the trace, one entry per executed
// step. The trace is shorter than the step list exactly when a stop
// condition fired or the context was cancelled between steps.
func (r *Runner) Run(ctx context.Context, s *Script) []StepResult {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	var (
		trace []StepResult
		prev  any
	)
	byName := make(map[string]any)

	for _, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			trace = append(trace, StepResult{Step: step.Label(), Result: errResult("run cancelled: " + err.Error())})
			break
		}

		log.Info("executing step", zap.String("step", step.Label()), zap.String("type", step.Type))
		result := r.runStep(ctx, step, prev, byName)

		trace = append(trace, StepResult{Step: step.Label(), Result: result})
		prev = result
		if step.Name != "" {
			byName[step.Name] = result
		}

		if step.StopOnError && IsError(result) {
			log.Warn("stop condition triggered", zap.String("step", step.Label()))
			break
		}
	}
	return trace
}

// runStep executes one step, converting any escaping panic into an inline
// error so a misbehaving handler cannot abort the run.
func (r *Runner) runStep(ctx context.Context, step Step, prev any, byName map[string]any) (result any) {
	defer func() {
		if p := recover(); p != nil {
			result = errResult(fmt.Sprintf("step panicked: %v", p))
		}
	}()

	switch step.Type {
	case StepChat:
		return r.runChat(ctx, step, prev, byName)
	case StepTool:
		args := substituteArgs(step.Arguments, prev, byName)
		res, err := r.Tools.Invoke(ctx, step.Server, step.Tool, args)
		if err != nil {
			return errResult(err.Error())
		}
		return res
	case StepBatch:
		return r.runBatch(ctx, step)
	case StepWait:
		return r.runWait(ctx, step)
	default:
		return errResult("unknown step type: " + step.Type)
	}
}

func (r *Runner) runChat(ctx context.Context, step Step, prev any, byName map[string]any) any {
	if r.Chat == nil {
		return errResult("no chat backend connected")
	}
	msg := substitute(step.Message, prev, byName)
	res, err := r.Chat.Chat(ctx, step.Model, msg)
	if err != nil {
		return errResult(err.Error())
	}
	if r.Counters != nil {
		r.Counters.MessagesSent.Add(1)
	}
	return res
}

func (r *Runner) runBatch(ctx context.Context, step Step) any {
	if r.Batch == nil {
		return errResult("batch execution not available")
	}
	load := r.LoadBatch
	if load == nil {
		load = LoadBatchFile
	}
	b, err := load(step.BatchFile)
	if err != nil {
		return errResult("load batch: " + err.Error())
	}
	results := r.Batch.Run(ctx, b.Tools, step.Concurrent)
	return map[string]any{"batch": b.Name, "results": results}
}

func (r *Runner) runWait(ctx context.Context, step Step) any {
	seconds := step.Seconds
	if seconds <= 0 {
		seconds = 1
	}
	t := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer t.Stop()
	select {
	case <-t.C:
		return map[string]any{"status": "waited", "seconds": seconds}
	case <-ctx.Done():
		return errResult("wait interrupted: " + ctx.Err().Error())
	}
}

// substitute expands result references in a string value.
func substitute(s string, prev any, byName map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	if strings.Contains(s, previousRef) {
		s = strings.ReplaceAll(s, previousRef, stringify(prev))
	}
	return resultRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := resultRef.FindStringSubmatch(ref)[1]
		if res, ok := byName[name]; ok {
			return stringify(res)
		}
		return ref
	})
}

// substituteArgs expands references in string-valued arguments, leaving
// everything else untouched. The input map is not modified.
func substituteArgs(args map[string]any, prev any, byName map[string]any) map[string]any {
	if len(args) == 0 {
		return args
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			out[k] = substitute(s, prev, byName)
		} else {
			out[k] = v
		}
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
