package workflow

import (
	"testing"

	"github.com/codetiger/processor/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusCodePtr(c message.StatusCode) *message.StatusCode { return &c }

// Scenario 5: a two-task chain (t1 -> t2, both at status Received) runs to
// quiescence in exactly two executions.
func TestExecuteWorkflowQuiescence(t *testing.T) {
	wf := message.Workflow{
		ID:     "wf-chain",
		Tenant: "tenant1",
		Origin: "api",
		Tasks: []message.Task{
			{
				ID:            "t1",
				MessageStatus: message.StatusReceived,
				PrevTask:      "",
				Function:      message.TaskFetch,
				Input:         "staged",
			},
			{
				ID:             "t2",
				MessageStatus:  message.StatusReceived,
				PrevTask:       "t1",
				PrevStatusCode: statusCodePtr(message.StatusCodeSuccess),
				Function:       message.TaskFetch,
				Input:          "staged-again",
			},
		},
	}

	payload := message.NewInlinePayload([]byte("<a/>"), message.FormatXML, message.SchemaISO20022, message.EncodingUTF8)
	msg := message.New("tenant1", "api", payload, map[string]interface{}{})
	auditBefore := len(msg.Audit)

	require.NoError(t, Execute(msg, wf))

	assert.Equal(t, auditBefore+2, len(msg.Audit))
	assert.Equal(t, "t2", msg.Progress.PrevTask)
	require.NotNil(t, msg.Progress.PrevStatusCode)
	assert.Equal(t, message.StatusCodeSuccess, *msg.Progress.PrevStatusCode)
}

// A task failure halts the engine, marks the message Failed, and wraps the
// underlying error as WorkflowError.
func TestExecuteWorkflowTaskFailureHalts(t *testing.T) {
	wf := message.Workflow{
		ID:     "wf-fail",
		Tenant: "tenant1",
		Origin: "api",
		Tasks: []message.Task{
			{
				ID:            "bad-enrich",
				MessageStatus: message.StatusReceived,
				PrevTask:      "",
				Function:      message.TaskEnrich,
				Input:         "not-a-rule-list",
			},
		},
	}

	payload := message.NewInlinePayload([]byte("<a/>"), message.FormatXML, message.SchemaISO20022, message.EncodingUTF8)
	msg := message.New("tenant1", "api", payload, nil)

	err := Execute(msg, wf)
	require.Error(t, err)

	var kindErr message.KindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, "WorkflowError", kindErr.Kind())
	assert.Equal(t, message.StatusFailed, msg.Progress.Status)
}

// Workflow convergence: a task whose postcondition re-satisfies its own
// precondition loops forever unless execute_workflow is bounded. The engine
// must terminate at the 100-entry audit guard (message.AuditOverflow) rather
// than spin indefinitely.
func TestExecuteWorkflowTerminatesAtAuditOverflowBound(t *testing.T) {
	wf := message.Workflow{
		ID:     "wf-loop",
		Tenant: "tenant1",
		Origin: "api",
		Tasks: []message.Task{
			{
				ID:             "loop",
				MessageStatus:  message.StatusReceived,
				PrevTask:       "loop",
				PrevStatusCode: statusCodePtr(message.StatusCodeSuccess),
				Function:       message.TaskFetch,
				Input:          "x",
			},
		},
	}

	payload := message.NewInlinePayload([]byte("<a/>"), message.FormatXML, message.SchemaISO20022, message.EncodingUTF8)
	msg := message.New("tenant1", "api", payload, nil)
	msg.Progress.PrevTask = "loop"
	success := message.StatusCodeSuccess
	msg.Progress.PrevStatusCode = &success

	err := Execute(msg, wf)
	require.Error(t, err)

	var kindErr message.KindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, "WorkflowError", kindErr.Kind())
	assert.LessOrEqual(t, len(msg.Audit), 100)
	assert.Equal(t, message.StatusFailed, msg.Progress.Status)
}

// No matching task for the workflow's tasks is quiescence, not an error.
func TestExecuteWorkflowNoMatchIsQuiescent(t *testing.T) {
	wf := message.Workflow{
		ID:     "wf-empty",
		Tenant: "tenant1",
		Origin: "api",
		Tasks:  nil,
	}
	payload := message.NewInlinePayload([]byte("<a/>"), message.FormatXML, message.SchemaISO20022, message.EncodingUTF8)
	msg := message.New("tenant1", "api", payload, nil)

	require.NoError(t, Execute(msg, wf))
}
