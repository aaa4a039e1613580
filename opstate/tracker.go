package opstate

import (
	"strconv"
	"sync"
	"time"
)

// Tracker holds a bounded window of the most recent worker executions in
// memory, evicting the oldest when full; List returns them in no particular
// order. It has no durability and no
// cross-process visibility — it exists purely so an operator hitting the
// ingress/processor's HTTP surface can see what the worker pool is doing
// right now.
type Tracker struct {
	mu         sync.RWMutex
	executions map[string]*Execution
	capacity   int
}

// NewTracker returns a Tracker retaining at most capacity executions.
// capacity <= 0 defaults to 1000.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Tracker{
		executions: make(map[string]*Execution),
		capacity:   capacity,
	}
}

func key(messageID int64, topic string, partition int32, offset int64) string {
	return strconv.FormatInt(messageID, 10) + "/" + topic + "/" + strconv.Itoa(int(partition)) + "/" + strconv.FormatInt(offset, 10)
}

// Start records a new running Execution for the given broker coordinates.
func (t *Tracker) Start(messageID int64, tenant, topic string, partition int32, offset int64) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.executions) >= t.capacity {
		t.evictOldest()
	}

	id := key(messageID, topic, partition, offset)
	t.executions[id] = &Execution{
		MessageID: messageID,
		Tenant:    tenant,
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	return id
}

// SetWorkflow records which workflow matched a running execution.
func (t *Tracker) SetWorkflow(id, workflowID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.executions[id]; ok {
		e.WorkflowID = workflowID
	}
}

// Finish marks an execution completed or failed.
func (t *Tracker) Finish(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.executions[id]
	if !ok {
		return
	}
	now := time.Now()
	e.CompletedAt = &now
	e.Duration = now.Sub(e.StartedAt).String()
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
	} else {
		e.Status = StatusCompleted
	}
}

// Get returns a copy of the tracked execution, or nil if unknown.
func (t *Tracker) Get(id string) *Execution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.executions[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// List returns copies of every tracked execution.
func (t *Tracker) List() []*Execution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Execution, 0, len(t.executions))
	for _, e := range t.executions {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

// Summary aggregates tracked executions by status.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Summary{Total: len(t.executions), ByStatus: make(map[Status]int)}
	for _, e := range t.executions {
		s.ByStatus[e.Status]++
	}
	return s
}

// evictOldest removes the execution with the earliest StartedAt. Must be
// called with mu held.
func (t *Tracker) evictOldest() {
	var oldestID string
	var oldestTime time.Time
	for id, e := range t.executions {
		if oldestID == "" || e.StartedAt.Before(oldestTime) {
			oldestID = id
			oldestTime = e.StartedAt
		}
	}
	if oldestID != "" {
		delete(t.executions, oldestID)
	}
}
