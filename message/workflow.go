package message

// WorkflowStatus is the lifecycle state of a Workflow definition.
type WorkflowStatus string

const (
	WorkflowDraft      WorkflowStatus = "Draft"
	WorkflowActive     WorkflowStatus = "Active"
	WorkflowDeprecated WorkflowStatus = "Deprecated"
)

// TaskFunction names the kind of work a Task performs. Validate and Publish
// are declared and reserved per SPEC_FULL.md's Open Question resolution;
// only Parse, Fetch, and Enrich have implementations today.
type TaskFunction string

const (
	TaskParse    TaskFunction = "Parse"
	TaskValidate TaskFunction = "Validate"
	TaskFetch    TaskFunction = "Fetch"
	TaskEnrich   TaskFunction = "Enrich"
	TaskPublish  TaskFunction = "Publish"
)

// Task is a single unit of work in a Workflow's static task graph.
type Task struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	MessageStatus  Status       `json:"message_status"`
	PrevTask       string       `json:"prev_task"`
	PrevStatusCode *StatusCode  `json:"prev_status_code,omitempty"`
	Condition      interface{}  `json:"condition,omitempty"`
	Function       TaskFunction `json:"function"`
	Input          interface{}  `json:"input,omitempty"`
}

// Workflow is a static, versioned description of a task graph gated by
// message-status and rule conditions.
type Workflow struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Version           int            `json:"version"`
	Tenant            string         `json:"tenant"`
	Origin            string         `json:"origin"`
	Status            WorkflowStatus `json:"status"`
	Condition         interface{}    `json:"condition,omitempty"`
	Tasks             []Task         `json:"tasks"`
	InputTopic        string         `json:"input_topic"`
	PersistOnComplete bool           `json:"persist_on_complete"`
}
