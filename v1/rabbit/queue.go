package rabbit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// queue implements Queue on its own channel so that QoS applies to it alone.
type queue struct {
	exchange *exchange
	opts     QueueOptions

	mu     sync.Mutex
	ch     *amqp.Channel
	name   string
	tag    string
	cancel context.CancelFunc
	done   chan struct{}
}

func (q *queue) Name() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.name
}

// Bind declares the queue and its bindings on a fresh channel.
func (q *queue) Bind(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ch != nil && !q.ch.IsClosed() {
		return nil
	}
	return q.setup()
}

// setup must be called with q.mu held.
func (q *queue) setup() error {
	client := q.exchange.client
	start := time.Now()

	ch, err := client.channel()
	if err != nil {
		return err
	}

	if err = q.declare(ch); err != nil {
		client.releaseChannel(ch)
		client.observeOperation("bind", q.opts.Name, q.exchange.name, time.Since(start), err, 0)
		return err
	}

	q.ch = ch
	client.observeOperation("bind", q.name, q.exchange.name, time.Since(start), nil, 0)
	return nil
}

func (q *queue) declare(ch *amqp.Channel) error {
	declared, err := ch.QueueDeclare(
		q.opts.Name,
		q.opts.Durable,
		q.opts.AutoDelete,
		q.opts.Exclusive,
		false, // NoWait
		queueArguments(q.opts),
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %q: %w: %w", q.opts.Name, ErrDeclareFailed, TranslateError(err))
	}
	q.name = declared.Name

	// the default exchange routes by queue name and rejects explicit bindings
	if q.exchange.name != "" {
		for _, key := range bindingKeys(q.opts) {
			if err = ch.QueueBind(q.name, key, q.exchange.name, false, nil); err != nil {
				return fmt.Errorf("failed to bind queue %q on %q: %w: %w", q.name, key, ErrBindFailed, TranslateError(err))
			}
		}
	}

	if q.opts.Prefetch > 0 {
		if err = ch.Qos(q.opts.Prefetch, 0, false); err != nil {
			return fmt.Errorf("%w: %w", ErrQoSFailed, TranslateError(err))
		}
	}
	return nil
}

// queueArguments builds the x-arguments for the queue declaration.
func queueArguments(opts QueueOptions) amqp.Table {
	args := amqp.Table{}
	for k, v := range opts.Arguments {
		args[k] = v
	}
	if opts.DeadLetterExchange != "" {
		args["x-dead-letter-exchange"] = opts.DeadLetterExchange
	}
	if opts.QueueMode != "" {
		args["x-queue-mode"] = opts.QueueMode
	}
	return args
}

// bindingKeys returns Key followed by Keys, without duplicates.
func bindingKeys(opts QueueOptions) []string {
	seen := make(map[string]struct{}, len(opts.Keys)+1)
	keys := make([]string, 0, len(opts.Keys)+1)
	for _, key := range append([]string{opts.Key}, opts.Keys...) {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

// Consume registers a consumer and runs the delivery loop in a goroutine.
// ctx bounds the registration only; consumption runs until Cancel or shutdown.
func (q *queue) Consume(ctx context.Context, fn func(Message)) error {
	if err := q.Bind(ctx); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel != nil {
		return fmt.Errorf("queue %q: %w: already consuming", q.name, ErrConsumeFailed)
	}

	q.tag = "minion." + uuid.NewString()
	deliveries, err := q.ch.Consume(
		q.name,
		q.tag,
		false, // autoAck
		q.opts.Exclusive,
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("queue %q: %w: %w", q.name, ErrConsumeFailed, TranslateError(err))
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.consumeLoop(loopCtx, deliveries, fn, q.done)
	return nil
}

// consumeLoop hands deliveries to fn in order. When the channel closes under it
// the queue is re-declared and consumption resumes after DelayToReconnect.
func (q *queue) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, fn func(Message), done chan struct{}) {
	defer close(done)
	client := q.exchange.client

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.shutdownSignal:
			client.logInfo(ctx, "Stopping consumer due to shutdown signal", map[string]interface{}{
				"queue": q.Name(),
			})
			return
		case d, ok := <-deliveries:
			if ok {
				client.observeOperation("consume", d.RoutingKey, q.Name(), 0, nil, int64(len(d.Body)))
				fn(newConsumerMessage(d))
				continue
			}

			client.logWarn(ctx, "Consumer channel closed, re-establishing", map[string]interface{}{
				"queue": q.Name(),
			})
			deliveries = q.reconsume(ctx)
			if deliveries == nil {
				return
			}
		}
	}
}

// reconsume retries until a new consumer is registered or the loop is stopped.
func (q *queue) reconsume(ctx context.Context) <-chan amqp.Delivery {
	client := q.exchange.client
	timer := time.NewTimer(client.cfg.Channel.DelayToReconnect)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.shutdownSignal:
			return nil
		case <-timer.C:
		}

		q.mu.Lock()
		err := q.setup()
		var deliveries <-chan amqp.Delivery
		if err == nil {
			deliveries, err = q.ch.Consume(q.name, q.tag, false, q.opts.Exclusive, false, false, nil)
		}
		q.mu.Unlock()

		if err == nil {
			client.logInfo(ctx, "Consumer re-established", map[string]interface{}{
				"queue": q.Name(),
			})
			return deliveries
		}

		client.logError(ctx, "Failed to establish consumer", map[string]interface{}{
			"queue": q.Name(),
			"error": err.Error(),
		})
		timer.Reset(client.cfg.Channel.DelayToReconnect)
	}
}

// Cancel stops consumption and waits for the delivery loop to exit.
// The channel stays open so in-flight messages can still be settled.
func (q *queue) Cancel() error {
	q.mu.Lock()
	cancel, done, ch, tag := q.cancel, q.done, q.ch, q.tag
	q.cancel = nil
	q.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	if ch == nil || ch.IsClosed() {
		return nil
	}
	if err := ch.Cancel(tag, false); err != nil {
		return fmt.Errorf("queue %q: %w", q.Name(), TranslateError(err))
	}
	return nil
}
