package rabbit

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// exchange implements Exchange on a dedicated channel of a RabbitClient.
type exchange struct {
	client *RabbitClient
	name   string
	kind   string

	mu sync.Mutex
	ch *amqp.Channel
}

func (e *exchange) Name() string { return e.name }
func (e *exchange) Kind() string { return e.kind }
func (e *exchange) Conn() Conn   { return e.client }

// Queue prepares a queue bound to this exchange.
func (e *exchange) Queue(opts QueueOptions) Queue {
	return &queue{exchange: e, opts: opts, name: opts.Name}
}

// openChannel opens a channel and declares the exchange on it.
func (e *exchange) openChannel() (*amqp.Channel, error) {
	ch, err := e.client.channel()
	if err != nil {
		return nil, err
	}

	if e.client.cfg.Channel.ConfirmPublish {
		if err = ch.Confirm(false); err != nil {
			e.client.releaseChannel(ch)
			return nil, fmt.Errorf("failed to enable publisher confirms: %w: %w", TranslateError(err), err)
		}
	}

	if e.name != "" {
		err = ch.ExchangeDeclare(
			e.name,
			e.kind,
			true,  // Durable
			false, // AutoDelete
			false, // Internal
			false, // NoWait
			nil,   // Arguments
		)
		if err != nil {
			e.client.releaseChannel(ch)
			return nil, fmt.Errorf("failed to declare exchange %q: %w: %w", e.name, ErrDeclareFailed, TranslateError(err))
		}
	}
	return ch, nil
}

// channel returns the publishing channel, reopening it after a reconnect.
func (e *exchange) channel() (*amqp.Channel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ch != nil && !e.ch.IsClosed() {
		return e.ch, nil
	}
	ch, err := e.openChannel()
	if err != nil {
		return nil, err
	}
	e.ch = ch
	return ch, nil
}

// Publish sends body to the exchange with props.Key as routing key.
// With Channel.ConfirmPublish set it waits for the broker confirmation.
func (e *exchange) Publish(ctx context.Context, body []byte, props Properties) error {
	start := time.Now()
	var publishErr error

	defer func() {
		e.client.observeOperation("produce", e.name, props.Key, time.Since(start), publishErr, int64(len(body)))
	}()

	if publishErr = ctx.Err(); publishErr != nil {
		return publishErr
	}

	ch, err := e.channel()
	if err != nil {
		publishErr = err
		return publishErr
	}

	msg := e.publishing(body, props)
	if !e.client.cfg.Channel.ConfirmPublish {
		if err = ch.PublishWithContext(ctx, e.name, props.Key, false, false, msg); err != nil {
			publishErr = fmt.Errorf("%w: %w", ErrPublishFailed, TranslateError(err))
		}
		return publishErr
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, e.name, props.Key, false, false, msg)
	if err != nil {
		publishErr = fmt.Errorf("%w: %w", ErrPublishFailed, TranslateError(err))
		return publishErr
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		publishErr = err
		return publishErr
	}
	if !acked {
		publishErr = ErrMessageNacked
	}
	return publishErr
}

func (e *exchange) publishing(body []byte, props Properties) amqp.Publishing {
	contentType := props.ContentType
	if contentType == "" {
		contentType = e.client.cfg.Channel.ContentType
	}

	msg := amqp.Publishing{
		Headers:         amqp.Table(props.Headers),
		ContentType:     contentType,
		ContentEncoding: props.ContentEncoding,
		CorrelationId:   props.CorrelationID,
		MessageId:       props.MessageID,
		ReplyTo:         props.ReplyTo,
		Expiration:      props.Expiration,
		Type:            props.Type,
		AppId:           props.AppID,
		Priority:        props.Priority,
		Timestamp:       props.Timestamp,
		Body:            body,
	}
	if props.Persistent {
		msg.DeliveryMode = amqp.Persistent
	}
	return msg
}
