package store

import "time"

// Run kinds.
const (
	KindScript = "script"
	KindBatch  = "batch"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded script or batch execution.
type Run struct {
	RunID      string
	Kind       string
	Name       string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	ResultJSON []byte
}
