package minion

import (
	"context"
	"fmt"
	"sync"
)

// QueueInfo is the payload of the ready event.
type QueueInfo struct {
	Name     string
	Exchange string
	Keys     []string
}

type (
	ReadyFunc    func(ctx context.Context, queue QueueInfo)
	MessageFunc  func(ctx context.Context, message any, meta Metadata)
	ResponseFunc func(ctx context.Context, response any)
	ErrorFunc    func(ctx context.Context, err error)
)

type listener[T any] struct {
	id uint64
	fn T
}

// listeners is an ordered set of callbacks of one event type.
type listeners[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	items  []listener[T]
}

func (l *listeners[T]) add(fn T) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.items = append(l.items, listener[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *listeners[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, item := range l.items {
		if item.id == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *listeners[T]) snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fns := make([]T, len(l.items))
	for i, item := range l.items {
		fns[i] = item.fn
	}
	return fns
}

// events is the typed event registry of a service. Emission calls subscribers
// synchronously in subscription order; a panicking subscriber is logged and
// does not affect the others.
type events struct {
	ready    listeners[ReadyFunc]
	message  listeners[MessageFunc]
	response listeners[ResponseFunc]
	errors   listeners[ErrorFunc]

	log func(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// OnReady subscribes fn to the ready event, emitted once the queue is bound.
func (e *events) OnReady(fn ReadyFunc) (unsubscribe func()) { return e.ready.add(fn) }

// OnMessage subscribes fn to the message event, emitted before each handler call.
func (e *events) OnMessage(fn MessageFunc) (unsubscribe func()) { return e.message.add(fn) }

// OnResponse subscribes fn to the response event, emitted after a successful ack.
func (e *events) OnResponse(fn ResponseFunc) (unsubscribe func()) { return e.response.add(fn) }

// OnError subscribes fn to the error event: handler failures after the nack,
// acknowledgement failures and connection failures.
func (e *events) OnError(fn ErrorFunc) (unsubscribe func()) { return e.errors.add(fn) }

func (e *events) emitReady(ctx context.Context, queue QueueInfo) {
	for _, fn := range e.ready.snapshot() {
		e.call(ctx, "ready", func() { fn(ctx, queue) })
	}
}

func (e *events) emitMessage(ctx context.Context, message any, meta Metadata) {
	for _, fn := range e.message.snapshot() {
		e.call(ctx, "message", func() { fn(ctx, message, meta) })
	}
}

func (e *events) emitResponse(ctx context.Context, response any) {
	for _, fn := range e.response.snapshot() {
		e.call(ctx, "response", func() { fn(ctx, response) })
	}
}

func (e *events) emitError(ctx context.Context, err error) {
	fns := e.errors.snapshot()
	if len(fns) == 0 && e.log != nil {
		e.log(ctx, "Unhandled minion error", err, nil)
		return
	}
	for _, fn := range fns {
		e.call(ctx, "error", func() { fn(ctx, err) })
	}
}

func (e *events) call(ctx context.Context, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil && e.log != nil {
			e.log(ctx, "Event subscriber panicked", fmt.Errorf("%v", r), map[string]interface{}{
				"event": event,
			})
		}
	}()
	fn()
}
