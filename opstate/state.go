// Package opstate tracks in-flight and recently completed worker tasks for
// operational visibility, independent of the Prometheus counters in the
// metrics package. It is grounded on the original processor's statemanager
// package, adapted from generic named "operations" to the worker runtime's
// specific (message, workflow) execution unit.
package opstate

import "time"

// Status is the lifecycle state of a tracked execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Execution is one tracked run of execute_workflow against a single
// Message, from the moment a worker task pulls it off the broker to the
// moment it is produced downstream (or fails).
type Execution struct {
	MessageID   int64      `json:"message_id"`
	Tenant      string     `json:"tenant"`
	Topic       string     `json:"topic"`
	Partition   int32      `json:"partition"`
	Offset      int64      `json:"offset"`
	WorkflowID  string     `json:"workflow_id,omitempty"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Summary provides aggregated counts across tracked executions.
type Summary struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}
