package message

import "time"

// Status is the Message's current position in the overall pipeline, as
// opposed to Progress.prev_task which tracks position within one Workflow.
type Status string

const (
	// StatusReceived is the canonical spelling chosen for this port; the
	// original source carries a latent "Recieved" typo (see DESIGN.md).
	StatusReceived   Status = "Received"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// StatusCode records whether the previous task on this Message succeeded.
type StatusCode string

const (
	StatusCodeSuccess StatusCode = "Success"
	StatusCodeFailure StatusCode = "Failure"
)

// Progress is the Message's current position in a Workflow's task graph.
type Progress struct {
	Status         Status      `json:"status"`
	WorkflowID     string      `json:"workflow_id"`
	PrevTask       string      `json:"prev_task"`
	PrevStatusCode *StatusCode `json:"prev_status_code,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

// NewProgress returns the Progress of a freshly created Message: Received,
// no workflow assigned yet, no previous task, no previous status code.
func NewProgress(now time.Time) Progress {
	return Progress{
		Status:    StatusReceived,
		Timestamp: now,
	}
}
