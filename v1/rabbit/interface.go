package rabbit

import "context"

// Conn is the broker connection surface used by minion services and publishers.
//
// This interface is implemented by the concrete *RabbitClient type.
type Conn interface {
	// Exchange declares (or reuses) an exchange of the given type and name.
	Exchange(ctx context.Context, kind, name string) (Exchange, error)

	// NotifyError registers fn to be called with connection level failures.
	// The returned function removes the registration.
	NotifyError(fn func(error)) (cancel func())

	// GracefulShutdown closes all channels and the connection.
	GracefulShutdown()
}

// Exchange is a declared exchange together with the channel used to publish on it.
type Exchange interface {
	Name() string
	Kind() string

	// Conn returns the connection the exchange was declared on.
	Conn() Conn

	// Queue prepares a queue bound to this exchange. Nothing is declared until Bind.
	Queue(opts QueueOptions) Queue

	// Publish sends body with the given properties.
	Publish(ctx context.Context, body []byte, props Properties) error
}

// Queue is a queue bound to an exchange.
type Queue interface {
	// Name is the declared name; for server named queues it is known only after Bind.
	Name() string

	// Bind declares the queue, binds every key and applies QoS. It returns once
	// the broker confirmed all of it.
	Bind(ctx context.Context) error

	// Consume registers a consumer and delivers every message to fn from a
	// background goroutine, in delivery order. It returns once the consumer is
	// registered.
	Consume(ctx context.Context, fn func(Message)) error

	// Cancel stops consumption. Messages already handed to fn are not affected.
	Cancel() error
}

// Message represents a consumed message from RabbitMQ.
// It provides methods for acknowledging, rejecting, and accessing message data.
type Message interface {
	// AckMsg acknowledges the message, removing it from the queue.
	AckMsg() error

	// NackMsg negatively acknowledges the message.
	// If requeue is true, the message is requeued; otherwise it is dead-lettered or dropped.
	NackMsg(requeue bool) error

	// Body returns the message payload as a byte slice.
	Body() []byte

	// Header returns the message headers.
	Header() map[string]interface{}

	// Metadata returns the delivery attributes.
	Metadata() Metadata
}
