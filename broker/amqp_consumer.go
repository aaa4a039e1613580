package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
)

// AMQPConsumer consumes from a fixed set of topics (AMQP queues), assigning
// each delivery a monotonically increasing per-topic offset. Partition is
// always 0, per SPEC_FULL.md §4.7. auto-ack is disabled; CommitOffset acks
// the underlying delivery.
type AMQPConsumer struct {
	conn   Connection
	ch     Channel
	topics []string

	mu       sync.Mutex
	nextOff  map[string]int64
	pending  map[pendingKey]amqp.Delivery
	merged   chan Record
	errCh    chan error
	deliverC <-chan amqp.Delivery
}

type pendingKey struct {
	topic  string
	offset int64
}

// NewAMQPConsumer dials dialer, declares each topic as a durable queue, and
// starts consuming all of them into one merged stream.
func NewAMQPConsumer(dialer Dialer, url string, topics []string, group string) (*AMQPConsumer, error) {
	conn, err := dialer.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}

	c := &AMQPConsumer{
		conn:    conn,
		ch:      ch,
		topics:  topics,
		nextOff: make(map[string]int64, len(topics)),
		pending: make(map[pendingKey]amqp.Delivery),
		merged:  make(chan Record, 64),
		errCh:   make(chan error, len(topics)),
	}

	for _, topic := range topics {
		if _, err := ch.QueueDeclare(topic, true, false, false, false, nil); err != nil {
			c.Close()
			return nil, fmt.Errorf("broker: declare queue %q: %w", topic, err)
		}
		deliveries, err := ch.Consume(topic, group, false, false, false, false, nil)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("broker: consume %q: %w", topic, err)
		}
		go c.pump(topic, deliveries)
	}

	return c, nil
}

func (c *AMQPConsumer) pump(topic string, deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		c.mu.Lock()
		offset := c.nextOff[topic]
		c.nextOff[topic] = offset + 1
		c.pending[pendingKey{topic, offset}] = d
		c.mu.Unlock()

		headers := make(map[string][]byte, len(d.Headers))
		for k, v := range d.Headers {
			if b, ok := v.([]byte); ok {
				headers[k] = b
			} else {
				headers[k] = []byte(fmt.Sprint(v))
			}
		}

		c.merged <- Record{
			Topic:     topic,
			Partition: 0,
			Offset:    offset,
			Key:       []byte(d.MessageId),
			Value:     d.Body,
			Headers:   headers,
		}
	}
}

// Poll returns the next record across all subscribed topics. A closed
// delivery stream is not reported as an error: Poll then blocks until ctx
// is done.
func (c *AMQPConsumer) Poll(ctx context.Context) (Record, error) {
	select {
	case r := <-c.merged:
		return r, nil
	case err := <-c.errCh:
		return Record{}, err
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}

// CommitOffset acknowledges the delivery at (topic, offset). Since RabbitMQ
// acks are per-message rather than cumulative-by-offset, it commits exactly
// the one record; callers are expected to commit every offset they process,
// per at-least-once semantics (SPEC_FULL.md §4.7 step 5).
func (c *AMQPConsumer) CommitOffset(ctx context.Context, topic string, partition int32, offset int64) error {
	c.mu.Lock()
	d, ok := c.pending[pendingKey{topic, offset}]
	if ok {
		delete(c.pending, pendingKey{topic, offset})
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("broker: no pending delivery for topic %q offset %d", topic, offset)
	}
	return d.Ack(false)
}

func (c *AMQPConsumer) Close() error {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
