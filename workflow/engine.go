// Package workflow implements the pure execute_workflow state machine: the
// match/execute loop that drives a Message through a Workflow's declared
// Tasks. It is grounded on the original processor's workflow.rs engine,
// reworked as a free function over the message package's types to avoid a
// cycle with message.Message's own TaskMatch/WorkflowMatch predicates.
package workflow

import (
	"time"

	"github.com/codetiger/processor/message"
)

// Execute drives msg through wf's tasks, running at most one task per pass
// and restarting the scan from the top after every successful execution, per
// SPEC_FULL.md §4.6. It returns nil once a pass completes with no matching
// task (quiescent).
func Execute(msg *message.Message, wf message.Workflow) error {
	// The worker runtime selects wf via workflow_match before calling
	// Execute; stamping its id here is what lets the first task's
	// "workflow.id == message.progress.workflow_id" precondition hold. If
	// msg is resuming a run already in this workflow the stamp is a no-op.
	msg.Progress.WorkflowID = wf.ID

	for {
		task, found := firstMatch(msg, wf)
		if !found {
			return nil
		}

		if err := runTask(msg, wf, task); err != nil {
			now := time.Now().UTC()
			failure := message.StatusCodeFailure
			msg.Progress.Status = message.StatusFailed
			msg.Progress.PrevStatusCode = &failure
			msg.Progress.Timestamp = now
			return message.ErrWorkflow(err)
		}
	}
}

func firstMatch(msg *message.Message, wf message.Workflow) (message.Task, bool) {
	for _, t := range wf.Tasks {
		if msg.TaskMatch(t, wf.ID) {
			return t, true
		}
	}
	return message.Task{}, false
}

// runTask dispatches to the task's Function and, on success, advances
// msg.Progress to (t.message_status, wf.id, t.id, Success, now) so the next
// pass's TaskMatch sees the new state.
func runTask(msg *message.Message, wf message.Workflow, t message.Task) error {
	var err error
	switch t.Function {
	case message.TaskParse:
		err = msg.Parse(wf.ID, t.ID, t.Description)
	case message.TaskEnrich:
		rules, ctxErr := enrichRulesFromInput(t.Input)
		if ctxErr != nil {
			return ctxErr
		}
		err = msg.Enrich(wf.ID, t.ID, t.Description, rules, msg.EphemeralData())
	case message.TaskFetch:
		err = msg.Fetch(wf.ID, t.ID, t.Description, t.Input)
	default:
		err = notImplementedError(t.Function)
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	success := message.StatusCodeSuccess
	msg.Progress.Status = t.MessageStatus
	msg.Progress.WorkflowID = wf.ID
	msg.Progress.PrevTask = t.ID
	msg.Progress.PrevStatusCode = &success
	msg.Progress.Timestamp = now
	return nil
}

type notImplementedError string

func (e notImplementedError) Error() string { return "task function not implemented: " + string(e) }

// enrichRulesFromInput adapts a Task's generic Input field — decoded from a
// Workflow document's JSON — into the typed []message.EnrichRule Enrich
// expects.
func enrichRulesFromInput(input interface{}) ([]message.EnrichRule, error) {
	raw, ok := input.([]interface{})
	if !ok {
		return nil, message.ErrInvalidInput("enrich task input must be a list of rules")
	}

	rules := make([]message.EnrichRule, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, message.ErrInvalidInput("enrich rule must be an object")
		}
		field, _ := obj["field"].(string)
		if field == "" {
			return nil, message.ErrInvalidInput("enrich rule missing field")
		}
		description, _ := obj["description"].(string)
		rules = append(rules, message.EnrichRule{
			Field:       field,
			Logic:       obj["logic"],
			Description: description,
		})
	}
	return rules, nil
}
