package message

import "time"

// ChangeLog is a single field-level mutation recorded inside an AuditLog.
type ChangeLog struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value,omitempty"`
	Reason   string      `json:"reason"`
}

// AuditLog is the append-only, per-task record of what a task changed.
// hash is left unset per the Open Question in SPEC_FULL.md §9/§"Features
// supplemented"; service/instance are stamped from the ambient process
// identity by the worker runtime, not by the task itself.
type AuditLog struct {
	ID              int64       `json:"id"`
	StartTime       time.Time   `json:"start_time"`
	FinishTime      time.Time   `json:"finish_time"`
	WorkflowID      string      `json:"workflow_id"`
	WorkflowVersion int         `json:"workflow_version"`
	TaskID          string      `json:"task_id"`
	Description     string      `json:"description"`
	Hash            string      `json:"hash,omitempty"`
	Service         string      `json:"service,omitempty"`
	Instance        string      `json:"instance,omitempty"`
	Changes         []ChangeLog `json:"changes"`
}
