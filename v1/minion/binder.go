package minion

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/Aleph-Alpha/minion/v1/rabbit"
)

// binding resolves and caches the connection and exchange for Options.
// An injected exchange is used as is and its connection is the service's.
type binding struct {
	opts     Options
	provider rabbit.Provider

	mu       sync.Mutex
	conn     rabbit.Conn
	exchange rabbit.Exchange
}

func newBinding(opts Options, provider rabbit.Provider) *binding {
	b := &binding{opts: opts, provider: provider}
	switch {
	case opts.Exchange != nil:
		b.exchange = opts.Exchange
		b.conn = opts.Exchange.Conn()
	case opts.Rabbit != nil:
		b.conn = opts.Rabbit
	}
	return b
}

// connection returns the connection, or nil before the first bind when it
// comes from the provider.
func (b *binding) connection() rabbit.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

// bindExchange returns the exchange, declaring it on first use. A failed
// attempt is retried by the next call.
func (b *binding) bindExchange(ctx context.Context) (rabbit.Exchange, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.exchange != nil {
		return b.exchange, nil
	}

	if b.conn == nil {
		conn, err := b.provider(ctx, b.opts.RabbitURL)
		if err != nil {
			return nil, fmt.Errorf("%w: connecting to %s: %w", ErrConnection, redactURL(b.opts.RabbitURL), err)
		}
		b.conn = conn
	}

	ex, err := b.conn.Exchange(ctx, b.opts.ExchangeType, b.opts.ExchangeName)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange %q: %w", ErrConnection, b.opts.ExchangeName, err)
	}
	b.exchange = ex
	return ex, nil
}

// bindQueue declares the queue on ex and waits until it is bound.
func (b *binding) bindQueue(ctx context.Context, ex rabbit.Exchange) (rabbit.Queue, error) {
	q := ex.Queue(b.opts.queueOptions())
	if err := q.Bind(ctx); err != nil {
		return nil, fmt.Errorf("%w: queue %q: %w", ErrConnection, b.opts.Name, err)
	}
	return q, nil
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
