package rabbit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerMessage implements the Message interface and wraps an AMQP delivery.
// This struct provides access to the message content and acknowledgment methods.
type ConsumerMessage struct {
	body     []byte         // The message payload
	delivery *amqp.Delivery // The underlying AMQP delivery object
}

func newConsumerMessage(d amqp.Delivery) *ConsumerMessage {
	return &ConsumerMessage{body: d.Body, delivery: &d}
}

// AckMsg acknowledges the message, informing RabbitMQ that the message
// has been successfully processed and can be removed from the queue.
//
// Returns an error if the acknowledgment fails.
func (m *ConsumerMessage) AckMsg() error {
	return m.delivery.Ack(false)
}

// NackMsg rejects the message. If requeue is true, the message will be
// returned to the queue for redelivery; otherwise, it will be discarded
// or sent to a dead-letter exchange if configured.
func (m *ConsumerMessage) NackMsg(requeue bool) error {
	return m.delivery.Nack(false, requeue)
}

// Body returns the message payload as a byte slice.
func (m *ConsumerMessage) Body() []byte {
	return m.body
}

// Header returns the headers associated with the message.
// Trace context propagated by a publisher travels in these headers.
func (m *ConsumerMessage) Header() map[string]interface{} {
	return m.delivery.Headers
}

// Metadata returns the delivery attributes of the message.
func (m *ConsumerMessage) Metadata() Metadata {
	d := m.delivery
	return Metadata{
		Exchange:      d.Exchange,
		RoutingKey:    d.RoutingKey,
		ConsumerTag:   d.ConsumerTag,
		MessageID:     d.MessageId,
		CorrelationID: d.CorrelationId,
		ContentType:   d.ContentType,
		ReplyTo:       d.ReplyTo,
		Type:          d.Type,
		Headers:       d.Headers,
		Body:          m.body,
		Redelivered:   d.Redelivered,
		DeliveryTag:   d.DeliveryTag,
		Timestamp:     d.Timestamp,
	}
}

// logInfo logs an informational message using the configured logger if available.
func (rb *RabbitClient) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.InfoWithContext(ctx, msg, nil, fields)
	}
}

// logWarn logs a warning message using the configured logger if available.
func (rb *RabbitClient) logWarn(ctx context.Context, msg string, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.WarnWithContext(ctx, msg, nil, fields)
	}
}

// logError is only used for errors in background goroutines that can't be returned to the caller.
func (rb *RabbitClient) logError(ctx context.Context, msg string, fields map[string]interface{}) {
	if rb.logger != nil {
		rb.logger.ErrorWithContext(ctx, msg, nil, fields)
	}
}
