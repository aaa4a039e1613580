// Package worker implements the bounded-concurrency consume/execute/produce
// loop described in SPEC_FULL.md §4.7. It is grounded on the original
// processor's generic worker pool (worker/pool.go: Pool/Worker,
// log.Printf-style progress lines, a stop channel for graceful shutdown),
// reworked from a queue/JobProcessor abstraction to the broker.Consumer /
// broker.Producer / workflow.Execute pipeline and a counting semaphore for
// the concurrency bound instead of one goroutine per configured worker slot.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/codetiger/processor/broker"
	"github.com/codetiger/processor/message"
	"github.com/codetiger/processor/metrics"
	"github.com/codetiger/processor/opstate"
	"github.com/codetiger/processor/workflow"
)

const produceAckTimeout = 5 * time.Second

// Config configures a Runner.
type Config struct {
	OutputTopic string
	Concurrency int64 // C in SPEC_FULL.md §5; default 1
	Workflows   []message.Workflow
	ServiceName string // stamped into every AuditLog entry's "service" field
}

// Runner holds the shared broker clients and an immutable workflow snapshot,
// and drives the consume -> execute -> produce -> commit loop with at most
// Concurrency in-flight tasks.
type Runner struct {
	consumer    broker.Consumer
	producer    broker.Producer
	workflows   []message.Workflow
	topic       string
	concurrency int64
	sem         *semaphore.Weighted
	tracker     *opstate.Tracker
	log         *logrus.Logger
	serviceName string
	instanceID  string
}

// NewRunner builds a Runner. A nil tracker disables operational tracking.
// It mints one instance id via google/uuid, stamped into every AuditLog
// entry this process produces so audit trails from a multi-replica
// deployment can be told apart.
func NewRunner(consumer broker.Consumer, producer broker.Producer, cfg Config, tracker *opstate.Tracker, log *logrus.Logger) *Runner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if tracker == nil {
		tracker = opstate.NewTracker(0)
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "processor"
	}
	return &Runner{
		consumer:    consumer,
		producer:    producer,
		workflows:   cfg.Workflows,
		topic:       cfg.OutputTopic,
		concurrency: concurrency,
		sem:         semaphore.NewWeighted(concurrency),
		tracker:     tracker,
		log:         log,
		serviceName: serviceName,
		instanceID:  uuid.NewString(),
	}
}

// Run pulls records until ctx is cancelled, handing each off to a bounded
// worker task. It blocks until every in-flight task has drained after
// cancellation.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("worker runner starting")
	for {
		rec, err := r.consumer.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info("worker runner draining in-flight tasks")
				_ = r.sem.Acquire(context.Background(), r.concurrency)
				return nil
			}
			r.log.WithError(err).Error("poll failed")
			continue
		}

		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.log.Info("worker runner draining in-flight tasks")
			_ = r.sem.Acquire(context.Background(), r.concurrency)
			return nil
		}

		metrics.InFlightTasks.Inc()
		go func(rec broker.Record) {
			defer r.sem.Release(1)
			defer metrics.InFlightTasks.Dec()
			r.handle(ctx, rec)
		}(rec)
	}
}

func (r *Runner) handle(ctx context.Context, rec broker.Record) {
	start := time.Now()
	execID := r.tracker.Start(0, "", rec.Topic, rec.Partition, rec.Offset)

	msg, err := decodeMessage(rec.Value)
	if err != nil {
		r.tracker.Finish(execID, err)
		metrics.ObserveTask("decode_error", start)
		r.log.WithError(err).WithField("topic", rec.Topic).Error("failed to deserialise message, record not committed")
		return
	}

	wf, found := firstWorkflowMatch(msg, r.workflows)
	if found {
		r.tracker.SetWorkflow(execID, wf.ID)
		if err := workflow.Execute(msg, wf); err != nil {
			r.tracker.Finish(execID, err)
			metrics.ObserveWorkflow(wf.ID, "failure")
			metrics.ObserveTask("workflow_error", start)
			r.log.WithError(err).WithFields(logrus.Fields{
				"message_id":  msg.ID,
				"workflow_id": wf.ID,
			}).Error("workflow execution failed, record not committed")
			return
		}
		metrics.ObserveWorkflow(wf.ID, "success")
		r.stampAuditIdentity(msg)
	} else {
		r.log.WithField("message_id", msg.ID).Warn("no workflow matched, publishing through unchanged")
	}

	out, err := json.Marshal(msg)
	if err != nil {
		r.tracker.Finish(execID, err)
		metrics.ObserveTask("encode_error", start)
		r.log.WithError(err).Error("failed to serialise outgoing message")
		return
	}

	produceCtx, cancel := context.WithTimeout(ctx, produceAckTimeout)
	defer cancel()

	if err := r.producer.Produce(produceCtx, r.topic, rec.Key, out, map[string][]byte{}); err != nil {
		r.tracker.Finish(execID, err)
		metrics.ProduceFailures.Inc()
		metrics.ObserveTask("produce_error", start)
		r.log.WithError(err).Error("produce failed, record not committed")
		return
	}

	if err := r.consumer.CommitOffset(ctx, rec.Topic, rec.Partition, rec.Offset); err != nil {
		r.tracker.Finish(execID, err)
		metrics.ObserveTask("commit_error", start)
		r.log.WithError(err).Error("offset commit failed after successful produce")
		return
	}

	r.tracker.Finish(execID, nil)
	metrics.ObserveTask("success", start)
}

// stampAuditIdentity fills the service/instance fields of every AuditLog
// entry this process appended, left blank by the task implementations
// themselves per SPEC_FULL.md's "Features supplemented" note: the ambient
// process identity belongs to the worker runtime, not to Parse/Enrich/Fetch.
func (r *Runner) stampAuditIdentity(msg *message.Message) {
	for i := range msg.Audit {
		if msg.Audit[i].Service == "" {
			msg.Audit[i].Service = r.serviceName
		}
		if msg.Audit[i].Instance == "" {
			msg.Audit[i].Instance = r.instanceID
		}
	}
}

func decodeMessage(raw []byte) (*message.Message, error) {
	if len(raw) == 0 {
		return nil, message.ErrInvalidInput("empty record payload")
	}
	var msg message.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, message.ErrDecode(err)
	}
	return &msg, nil
}

func firstWorkflowMatch(msg *message.Message, workflows []message.Workflow) (message.Workflow, bool) {
	for _, wf := range workflows {
		if msg.WorkflowMatch(wf) {
			return wf, true
		}
	}
	return message.Workflow{}, false
}
