package broker

import "github.com/streadway/amqp"

// MockChannel is an in-memory Channel for exercising AMQPConsumer/AMQPProducer
// without a live broker, mirroring the original queue package's
// MockAMQPChannel.
type MockChannel struct {
	PublishedMessages []amqp.Publishing
	PublishedKeys     []string
	PublishErr        error
	QueueDeclareErr   error
	ConfirmCh         chan amqp.Confirmation
	AutoAck           bool

	// Deliveries, if set, is returned by Consume instead of a closed channel
	// — tests populate it to simulate inbound broker traffic.
	Deliveries chan amqp.Delivery
}

func NewMockChannel() *MockChannel {
	return &MockChannel{ConfirmCh: make(chan amqp.Confirmation, 8), AutoAck: true}
}

func (m *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if m.QueueDeclareErr != nil {
		return amqp.Queue{}, m.QueueDeclareErr
	}
	return amqp.Queue{Name: name}, nil
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.PublishedMessages = append(m.PublishedMessages, msg)
	m.PublishedKeys = append(m.PublishedKeys, key)
	if m.AutoAck {
		m.ConfirmCh <- amqp.Confirmation{Ack: true}
	}
	return nil
}

func (m *MockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if m.Deliveries != nil {
		return m.Deliveries, nil
	}
	ch := make(chan amqp.Delivery)
	close(ch)
	return ch, nil
}

func (m *MockChannel) Confirm(noWait bool) error { return nil }

func (m *MockChannel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	return m.ConfirmCh
}

func (m *MockChannel) Close() error { return nil }

// MockConnection is an in-memory Connection returning a fixed MockChannel.
type MockConnection struct {
	Ch       Channel
	CloseErr error
}

func (m *MockConnection) Channel() (Channel, error) { return m.Ch, nil }
func (m *MockConnection) Close() error              { return m.CloseErr }

// MockDialer returns a fixed MockConnection regardless of url.
type MockDialer struct {
	Conn Connection
}

func (m *MockDialer) Dial(url string) (Connection, error) { return m.Conn, nil }

// NewMockDialer wires a MockDialer -> MockConnection -> MockChannel chain
// ready for NewAMQPProducer/NewAMQPConsumer.
func NewMockDialer() (*MockDialer, *MockChannel) {
	ch := NewMockChannel()
	return &MockDialer{Conn: &MockConnection{Ch: ch}}, ch
}

// MockAcknowledger records Ack/Nack/Reject calls against delivery tags so
// tests can assert a CommitOffset actually acknowledged the right delivery.
type MockAcknowledger struct {
	Acked []uint64
}

func (a *MockAcknowledger) Ack(tag uint64, multiple bool) error {
	a.Acked = append(a.Acked, tag)
	return nil
}

func (a *MockAcknowledger) Nack(tag uint64, multiple, requeue bool) error { return nil }
func (a *MockAcknowledger) Reject(tag uint64, requeue bool) error        { return nil }
