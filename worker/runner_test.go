package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetiger/processor/broker"
	"github.com/codetiger/processor/message"
	"github.com/codetiger/processor/opstate"
)

type fakeConsumer struct {
	mu        sync.Mutex
	records   []broker.Record
	idx       int
	committed []int64
}

func (f *fakeConsumer) Poll(ctx context.Context) (broker.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.records) {
		<-ctx.Done()
		return broker.Record{}, ctx.Err()
	}
	rec := f.records[f.idx]
	f.idx++
	return rec, nil
}

func (f *fakeConsumer) CommitOffset(ctx context.Context, topic string, partition int32, offset int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, offset)
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakeProducer struct {
	mu       sync.Mutex
	produced []broker.Record
	failWith error
}

func (f *fakeProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string][]byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.produced = append(f.produced, broker.Record{Topic: topic, Key: key, Value: value, Headers: headers})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func newRecordFor(t *testing.T, tenant, origin string) broker.Record {
	t.Helper()
	payload := message.NewInlinePayload([]byte("<a/>"), message.FormatXML, message.SchemaISO20022, message.EncodingUTF8)
	msg := message.New(tenant, origin, payload, map[string]interface{}{})
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return broker.Record{Topic: "inbound", Partition: 0, Offset: 0, Key: []byte("k"), Value: raw}
}

func TestRunnerPublishesThroughWhenNoWorkflowMatches(t *testing.T) {
	rec := newRecordFor(t, "tenant1", "api")
	consumer := &fakeConsumer{records: []broker.Record{rec}}
	producer := &fakeProducer{}

	runner := NewRunner(consumer, producer, Config{OutputTopic: "outbound", Concurrency: 2}, opstate.NewTracker(10), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = runner.Run(ctx)

	require.Eventually(t, func() bool {
		producer.mu.Lock()
		defer producer.mu.Unlock()
		return len(producer.produced) == 1
	}, time.Second, 10*time.Millisecond)

	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	assert.Equal(t, []int64{0}, consumer.committed)
}

func TestRunnerExecutesMatchingWorkflow(t *testing.T) {
	rec := newRecordFor(t, "tenant1", "api")
	consumer := &fakeConsumer{records: []broker.Record{rec}}
	producer := &fakeProducer{}

	wf := message.Workflow{
		ID:     "wf1",
		Tenant: "tenant1",
		Origin: "api",
		Tasks: []message.Task{
			{ID: "t1", MessageStatus: message.StatusReceived, PrevTask: "", Function: message.TaskFetch, Input: "x"},
		},
	}

	runner := NewRunner(consumer, producer, Config{OutputTopic: "outbound", Concurrency: 1, Workflows: []message.Workflow{wf}}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = runner.Run(ctx)

	require.Eventually(t, func() bool {
		producer.mu.Lock()
		defer producer.mu.Unlock()
		return len(producer.produced) == 1
	}, time.Second, 10*time.Millisecond)

	producer.mu.Lock()
	defer producer.mu.Unlock()
	var out message.Message
	require.NoError(t, json.Unmarshal(producer.produced[0].Value, &out))
	assert.Equal(t, "t1", out.Progress.PrevTask)

	require.NotEmpty(t, out.Audit)
	last := out.Audit[len(out.Audit)-1]
	assert.Equal(t, "processor", last.Service)
	assert.NotEmpty(t, last.Instance)
}

func TestRunnerDoesNotCommitOnProduceFailure(t *testing.T) {
	rec := newRecordFor(t, "tenant1", "api")
	consumer := &fakeConsumer{records: []broker.Record{rec}}
	producer := &fakeProducer{failWith: assert.AnError}

	runner := NewRunner(consumer, producer, Config{OutputTopic: "outbound", Concurrency: 1}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = runner.Run(ctx)

	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	assert.Empty(t, consumer.committed)
}
