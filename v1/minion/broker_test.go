package minion

import (
	"context"
	"errors"
	"sync"

	"github.com/Aleph-Alpha/minion/v1/rabbit"
)

// memoryBroker is an in-process stand-in for RabbitMQ. Routing is by exact
// key match, plus "#" which matches every key.
type memoryBroker struct {
	mu        sync.Mutex
	declared  []string
	queues    []*memoryQueue
	published []memoryPublish
	settled   []settlement
}

type memoryPublish struct {
	Exchange string
	Body     []byte
	Props    rabbit.Properties
}

func newMemoryBroker() *memoryBroker {
	return &memoryBroker{}
}

func (b *memoryBroker) conn() *memoryConn {
	return &memoryConn{broker: b, errorFns: map[int]func(error){}}
}

func (b *memoryBroker) declarations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.declared...)
}

func (b *memoryBroker) publishes() []memoryPublish {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]memoryPublish{}, b.published...)
}

func (b *memoryBroker) settlements() []settlement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]settlement{}, b.settled...)
}

func (b *memoryBroker) settle(st settlement) {
	b.mu.Lock()
	b.settled = append(b.settled, st)
	b.mu.Unlock()
}

func (b *memoryBroker) route(exchange string, body []byte, props rabbit.Properties) {
	b.mu.Lock()
	b.published = append(b.published, memoryPublish{Exchange: exchange, Body: body, Props: props})
	var targets []*memoryQueue
	for _, q := range b.queues {
		if q.exchange.name == exchange && q.matches(props.Key) {
			targets = append(targets, q)
		}
	}
	b.mu.Unlock()

	for _, q := range targets {
		q.deliver(&memoryMessage{
			body: body,
			meta: rabbit.Metadata{
				Exchange:      exchange,
				RoutingKey:    props.Key,
				MessageID:     props.MessageID,
				CorrelationID: props.CorrelationID,
				ContentType:   props.ContentType,
				Headers:       props.Headers,
				Body:          body,
			},
			broker: b,
		})
	}
}

type memoryConn struct {
	broker *memoryBroker

	mu         sync.Mutex
	errorFns   map[int]func(error)
	nextID     int
	exchangeFn func(kind, name string) error
}

func (c *memoryConn) Exchange(ctx context.Context, kind, name string) (rabbit.Exchange, error) {
	if c.exchangeFn != nil {
		if err := c.exchangeFn(kind, name); err != nil {
			return nil, err
		}
	}
	c.broker.mu.Lock()
	c.broker.declared = append(c.broker.declared, name)
	c.broker.mu.Unlock()
	return &memoryExchange{conn: c, name: name, kind: kind}, nil
}

func (c *memoryConn) NotifyError(fn func(error)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.errorFns[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.errorFns, id)
		c.mu.Unlock()
	}
}

func (c *memoryConn) fail(err error) {
	c.mu.Lock()
	fns := make([]func(error), 0, len(c.errorFns))
	for _, fn := range c.errorFns {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (c *memoryConn) GracefulShutdown() {}

type memoryExchange struct {
	conn *memoryConn
	name string
	kind string
}

func (e *memoryExchange) Name() string      { return e.name }
func (e *memoryExchange) Kind() string      { return e.kind }
func (e *memoryExchange) Conn() rabbit.Conn { return e.conn }

func (e *memoryExchange) Queue(opts rabbit.QueueOptions) rabbit.Queue {
	return &memoryQueue{exchange: e, opts: opts}
}

func (e *memoryExchange) Publish(ctx context.Context, body []byte, props rabbit.Properties) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.conn.broker.route(e.name, body, props)
	return nil
}

type memoryQueue struct {
	exchange *memoryExchange
	opts     rabbit.QueueOptions

	mu         sync.Mutex
	bound      bool
	deliveries chan *memoryMessage
	stop       chan struct{}
	done       chan struct{}
}

func (q *memoryQueue) Name() string { return q.opts.Name }

func (q *memoryQueue) matches(key string) bool {
	for _, k := range append([]string{q.opts.Key}, q.opts.Keys...) {
		if k == "#" || k == key {
			return true
		}
	}
	return false
}

func (q *memoryQueue) Bind(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.bound {
		return nil
	}
	q.bound = true
	q.deliveries = make(chan *memoryMessage, 100)

	b := q.exchange.conn.broker
	b.mu.Lock()
	b.queues = append(b.queues, q)
	b.mu.Unlock()
	return nil
}

func (q *memoryQueue) deliver(m *memoryMessage) {
	q.deliveries <- m
}

func (q *memoryQueue) Consume(ctx context.Context, fn func(rabbit.Message)) error {
	if err := q.Bind(ctx); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stop != nil {
		return errors.New("already consuming")
	}
	q.stop = make(chan struct{})
	q.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case m := <-q.deliveries:
				fn(m)
			}
		}
	}(q.stop, q.done)
	return nil
}

func (q *memoryQueue) Cancel() error {
	q.mu.Lock()
	stop, done := q.stop, q.done
	q.stop = nil
	q.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

type settlement struct {
	ack     bool
	requeue bool
}

type memoryMessage struct {
	body   []byte
	meta   rabbit.Metadata
	broker *memoryBroker
}

func (m *memoryMessage) AckMsg() error {
	m.broker.settle(settlement{ack: true})
	return nil
}

func (m *memoryMessage) NackMsg(requeue bool) error {
	m.broker.settle(settlement{requeue: requeue})
	return nil
}

func (m *memoryMessage) Body() []byte                   { return m.body }
func (m *memoryMessage) Header() map[string]interface{} { return m.meta.Headers }
func (m *memoryMessage) Metadata() rabbit.Metadata      { return m.meta }
