// Package message implements the aggregate root of the transformation
// pipeline: the structured Message document, its three-phase mutation
// transaction, and the Parse/Enrich/Fetch task implementations that operate
// on it. It is grounded on the original processor's core-data message model
// (core.rs, parse.rs, enrich.rs, fetch.rs, logic.rs), reworked into Go value
// types with explicit error returns instead of Result<T, E>.
package message

import (
	"strings"
	"time"

	"github.com/codetiger/processor/idgen"
	"github.com/codetiger/processor/rule"
)

const maxAuditEntries = 100

// undoEntry is one (full_path, old_value) pair in the transaction undo log.
// existed distinguishes "the key was absent" from "the key held nil", so a
// rollback can delete a key it vivified rather than leaving it set to null.
type undoEntry struct {
	path    string
	old     interface{}
	existed bool
}

// Message is the aggregate root traversing the pipeline: payload, parsed
// data, matching metadata, workflow progress, and the append-only audit
// trail. ephemeralData and txChanges are intentionally unexported so the
// default JSON encoding never serialises them, satisfying the invariant in
// SPEC_FULL.md §3 without a hand-written MarshalJSON.
type Message struct {
	ID       int64      `json:"id"`
	ParentID *int64     `json:"parent_id,omitempty"`
	Version  int        `json:"version"`
	Tenant   string     `json:"tenant"`
	Origin   string     `json:"origin"`
	Payload  Payload    `json:"payload"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata"`
	Progress Progress   `json:"progress"`
	Audit    []AuditLog `json:"audit"`

	ephemeralData interface{}
	txChanges     []undoEntry
	txWorkflowID  string
	txTaskID      string
}

// New constructs a fresh Message. It stamps a creation AuditLog (task_id
// "create") so the audit trail documents the message's origin, and starts
// version at 1 to account for it — the first task to run after New lands at
// version 2.
func New(tenant, origin string, payload Payload, metadata interface{}) *Message {
	now := time.Now().UTC()
	m := &Message{
		ID:       idgen.Default.Next(),
		Version:  1,
		Tenant:   tenant,
		Origin:   origin,
		Payload:  payload,
		Metadata: metadata,
		Progress: NewProgress(now),
	}
	m.Audit = append(m.Audit, AuditLog{
		ID:          idgen.Default.Next(),
		StartTime:   now,
		FinishTime:  now,
		TaskID:      "create",
		Description: "Message created",
		Changes:     []ChangeLog{},
	})
	return m
}

// EphemeralData returns the rule-evaluation context staged by Fetch. It is
// never serialised.
func (m *Message) EphemeralData() interface{} {
	return m.ephemeralData
}

// TransactionOpen reports whether a mutation transaction is currently in
// flight (invariant 6 in SPEC_FULL.md §3).
func (m *Message) TransactionOpen() bool {
	return m.txChanges != nil
}

// Begin opens a mutation transaction: it records the target workflow/task in
// Progress and initialises an empty undo log, per SPEC_FULL.md §4.1.
func (m *Message) Begin(workflowID, taskID string) {
	m.Progress.WorkflowID = workflowID
	m.Progress.PrevTask = taskID
	m.txWorkflowID = workflowID
	m.txTaskID = taskID
	m.txChanges = []undoEntry{}
}

// Update applies a single leaf write to Data, auto-vivifying any
// intermediate node that is not already an object. path must start with the
// literal segment "data".
func (m *Message) Update(path string, value interface{}) error {
	segments := strings.Split(path, ".")
	if len(segments) == 0 || segments[0] != "data" {
		return ErrInvalidFieldPath(path)
	}

	rest := segments[1:]
	if len(rest) == 0 {
		m.txChanges = append(m.txChanges, undoEntry{path: "data", old: m.Data, existed: true})
		m.Data = value
		return nil
	}

	root, ok := m.Data.(map[string]interface{})
	if !ok {
		m.txChanges = append(m.txChanges, undoEntry{path: "data", old: m.Data, existed: true})
		root = map[string]interface{}{}
		m.Data = root
	}

	cur := root
	prefix := "data"
	for _, seg := range rest[:len(rest)-1] {
		prefix += "." + seg
		next, exists := cur[seg]
		nextMap, isMap := next.(map[string]interface{})
		if !exists || !isMap {
			// Record what the vivified node replaced so Rollback removes it.
			m.txChanges = append(m.txChanges, undoEntry{path: prefix, old: next, existed: exists})
			nextMap = map[string]interface{}{}
			cur[seg] = nextMap
		}
		cur = nextMap
	}

	leaf := rest[len(rest)-1]
	old, existed := cur[leaf]
	m.txChanges = append(m.txChanges, undoEntry{path: path, old: old, existed: existed})
	cur[leaf] = value
	return nil
}

// Commit closes the open transaction successfully: stamps prev_status_code
// Success and the timestamp, and discards the undo log.
func (m *Message) Commit() {
	now := time.Now().UTC()
	success := StatusCodeSuccess
	m.Progress.PrevStatusCode = &success
	m.Progress.Timestamp = now
	m.txChanges = nil
}

// Rollback undoes every Update recorded in the current transaction, in
// reverse order, stopping the walk at the first non-object parent so it
// never panics on structure another mutation has since replaced.
func (m *Message) Rollback() {
	for i := len(m.txChanges) - 1; i >= 0; i-- {
		m.restore(m.txChanges[i])
	}
	now := time.Now().UTC()
	failure := StatusCodeFailure
	m.Progress.PrevStatusCode = &failure
	m.Progress.Timestamp = now
	m.txChanges = nil
}

func (m *Message) restore(entry undoEntry) {
	segments := strings.Split(entry.path, ".")[1:]
	if len(segments) == 0 {
		m.Data = entry.old
		return
	}

	cur, ok := m.Data.(map[string]interface{})
	if !ok {
		return
	}
	for _, seg := range segments[:len(segments)-1] {
		next, exists := cur[seg]
		if !exists {
			return
		}
		nextMap, isMap := next.(map[string]interface{})
		if !isMap {
			return
		}
		cur = nextMap
	}

	leaf := segments[len(segments)-1]
	if entry.existed {
		cur[leaf] = entry.old
	} else {
		delete(cur, leaf)
	}
}

// auditFull reports whether the next appendAudit call would be rejected by
// the 100-entry runaway-loop guard. Callers that hold an open transaction
// must check this before Commit, not after, so a rejected audit entry never
// leaves a committed mutation behind — see ErrAuditOverflow.
func (m *Message) auditFull() bool {
	return len(m.Audit) >= maxAuditEntries
}

// appendAudit records a successful task's AuditLog and advances Version,
// enforcing the 100-entry runaway-loop guard.
func (m *Message) appendAudit(log AuditLog) error {
	if m.auditFull() {
		return ErrAuditOverflow()
	}
	m.Audit = append(m.Audit, log)
	m.Version++
	return nil
}

// TaskMatch is a pure function of (Message.progress, Message.metadata, task
// fields, workflow id) per SPEC_FULL.md §8's match-determinism property.
// workflowID is the id of the Workflow currently being executed; the engine
// stamps it into Progress before the first task of a run (see
// workflow.Execute), so in practice it always equals
// m.Progress.WorkflowID once execution is underway.
func (m *Message) TaskMatch(t Task, workflowID string) bool {
	if t.MessageStatus != m.Progress.Status {
		return false
	}
	if workflowID != m.Progress.WorkflowID {
		return false
	}
	if t.PrevTask != m.Progress.PrevTask {
		return false
	}
	if !statusCodePtrEqual(t.PrevStatusCode, m.Progress.PrevStatusCode) {
		return false
	}
	if t.Condition != nil {
		v, err := rule.Apply(t.Condition, m.Metadata)
		if err != nil {
			return false
		}
		ok, isBool := v.(bool)
		if !isBool || !ok {
			return false
		}
	}
	return true
}

// WorkflowMatch is the outer filter used by the worker runtime to pick a
// Workflow for an incoming Message.
func (m *Message) WorkflowMatch(w Workflow) bool {
	if m.Tenant != w.Tenant || m.Origin != w.Origin {
		return false
	}
	if w.Condition != nil {
		v, err := rule.Apply(w.Condition, m.Metadata)
		if err != nil {
			return false
		}
		ok, isBool := v.(bool)
		if !isBool || !ok {
			return false
		}
	}
	return true
}

func statusCodePtrEqual(a, b *StatusCode) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
