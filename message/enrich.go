package message

import (
	"fmt"
	"time"

	"github.com/codetiger/processor/idgen"
	"github.com/codetiger/processor/rule"
)

// EnrichRule is one (target-path, rule) pair applied by Enrich.
type EnrichRule struct {
	Field       string
	Logic       interface{}
	Description string
}

// Enrich evaluates each rule's Logic against context (NOT against Data —
// that distinction is load-bearing per SPEC_FULL.md §4.4) and writes the
// result to Field in order. Any single failure rolls back the whole
// transaction and no AuditLog is appended; success bundles every ChangeLog
// into one AuditLog and advances Version by exactly one.
func (m *Message) Enrich(workflowID, taskID, description string, rules []EnrichRule, context interface{}) error {
	start := time.Now().UTC()
	m.Begin(workflowID, taskID)

	changes := make([]ChangeLog, 0, len(rules))
	for _, r := range rules {
		value, err := rule.Apply(r.Logic, context)
		if err != nil {
			m.Rollback()
			return err
		}
		if err := m.Update(r.Field, value); err != nil {
			m.Rollback()
			return err
		}
		reason := r.Description
		if reason == "" {
			reason = fmt.Sprintf("Enriched field %s", r.Field)
		}
		changes = append(changes, ChangeLog{
			Field:    r.Field,
			NewValue: value,
			Reason:   reason,
		})
	}

	if m.auditFull() {
		m.Rollback()
		return ErrAuditOverflow()
	}

	m.Commit()

	return m.appendAudit(AuditLog{
		ID:          idgen.Default.Next(),
		StartTime:   start,
		FinishTime:  time.Now().UTC(),
		WorkflowID:  workflowID,
		TaskID:      taskID,
		Description: description,
		Changes:     changes,
	})
}
