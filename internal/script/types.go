// Package script interprets automation scripts and batch files: ordered
// typed steps executed against connected tool servers, with result
// substitution and early termination on error.
package script

// Step types.
const (
	StepChat  = "chat"
	StepTool  = "tool"
	StepBatch = "batch"
	StepWait  = "wait"
)

// Step is one entry of a script. Which fields matter depends on Type.
type Step struct {
	Type string `json:"type" yaml:"type"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// chat
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`

	// tool
	Server    string         `json:"server,omitempty" yaml:"server,omitempty"`
	Tool      string         `json:"tool,omitempty" yaml:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`

	// batch
	BatchFile  string `json:"batch_file,omitempty" yaml:"batch_file,omitempty"`
	Concurrent bool   `json:"concurrent,omitempty" yaml:"concurrent,omitempty"`

	// wait
	Seconds float64 `json:"seconds,omitempty" yaml:"seconds,omitempty"`

	// StopOnError terminates the run early when this step's result is an
	// error. The rest of the script is skipped and the trace ends here.
	StopOnError bool `json:"stop_on_error,omitempty" yaml:"stop_on_error,omitempty"`
}

// Label is the step's display name in traces and logs.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Type
}

// Script is a named ordered sequence of steps.
type Script struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// StepResult is one entry of an execution trace.
type StepResult struct {
	Step   string `json:"step"`
	Result any    `json:"result"`
}

// Invocation is one tool call inside a batch.
type Invocation struct {
	Server    string         `json:"server" yaml:"server"`
	Tool      string         `json:"tool" yaml:"tool"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Batch is a named set of tool invocations executed together.
type Batch struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Tools       []Invocation `json:"tools" yaml:"tools"`
}

// ToolResult is the outcome of one batch invocation. Exactly one of Result
// and Err is set.
type ToolResult struct {
	Server string `json:"server"`
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Err    string `json:"error,omitempty"`
}

// errResult is the inline error shape embedded in traces, matching the
// structured-error convention used across the CLI output.
func errResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// IsError reports whether a trace result carries an inline error.
func IsError(result any) bool {
	m, ok := result.(map[string]any)
	if !ok {
		return false
	}
	_, has := m["error"]
	return has
}
