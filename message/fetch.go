package message

import (
	"time"

	"github.com/codetiger/processor/idgen"
)

// Fetch stages value as the rule-evaluation context for a subsequent
// Enrich. It bypasses the Update/transaction mechanism entirely — there is
// nothing to roll back since ephemeral_data is never serialised and has no
// undo semantics — matching the original fetch.rs.
func (m *Message) Fetch(workflowID, taskID, description string, value interface{}) error {
	start := time.Now().UTC()
	m.ephemeralData = value

	return m.appendAudit(AuditLog{
		ID:          idgen.Default.Next(),
		StartTime:   start,
		FinishTime:  time.Now().UTC(),
		WorkflowID:  workflowID,
		TaskID:      taskID,
		Description: description,
		Changes:     []ChangeLog{},
	})
}
