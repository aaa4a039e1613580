package broker

import "github.com/streadway/amqp"

// Connection abstracts an AMQP connection so AMQPConsumer/AMQPProducer can
// be exercised against a mock in tests, mirroring the original queue
// package's AMQPConnection interface.
type Connection interface {
	Channel() (Channel, error)
	Close() error
}

// Channel abstracts an AMQP channel.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	Close() error
}

// Dialer abstracts dialing an AMQP broker, so tests can inject a fake.
type Dialer interface {
	Dial(url string) (Connection, error)
}

// RealDialer dials a live RabbitMQ broker using streadway/amqp.
type RealDialer struct{}

func (RealDialer) Dial(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &realConnection{conn: conn}, nil
}

type realConnection struct{ conn *amqp.Connection }

func (r *realConnection) Channel() (Channel, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	return &realChannel{ch: ch}, nil
}

func (r *realConnection) Close() error { return r.conn.Close() }

type realChannel struct{ ch *amqp.Channel }

func (r *realChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return r.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}

func (r *realChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return r.ch.Publish(exchange, key, mandatory, immediate, msg)
}

func (r *realChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return r.ch.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}

func (r *realChannel) Confirm(noWait bool) error { return r.ch.Confirm(noWait) }

func (r *realChannel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	return r.ch.NotifyPublish(confirm)
}

func (r *realChannel) Close() error { return r.ch.Close() }
