package rabbit

import (
	"context"
	"os"
	"sync"

	"github.com/Aleph-Alpha/minion/v1/observability"
	"golang.org/x/sync/singleflight"
)

// DefaultURL is used when neither a URI nor $RABBIT_URL is given.
const DefaultURL = "amqp://localhost"

// Provider returns a connection for the given AMQP URI.
type Provider func(ctx context.Context, uri string) (Conn, error)

// DefaultAddress returns $RABBIT_URL, or DefaultURL when it is unset.
func DefaultAddress() string {
	if v := os.Getenv("RABBIT_URL"); v != "" {
		return v
	}
	return DefaultURL
}

// ConnectionCache shares one client per URI. Concurrent requests for the same
// URI wait on a single dial. Clients it creates monitor and re-establish their
// connection until Close.
type ConnectionCache struct {
	group singleflight.Group

	mu      sync.Mutex
	clients map[string]*RabbitClient

	dial     func(ctx context.Context, uri string) (*RabbitClient, error)
	logger   Logger
	observer observability.Observer
}

// NewConnectionCache creates an empty cache that dials with Dial.
func NewConnectionCache() *ConnectionCache {
	return &ConnectionCache{
		clients: make(map[string]*RabbitClient),
		dial:    Dial,
	}
}

// WithLogger sets the logger attached to clients dialed after the call.
func (c *ConnectionCache) WithLogger(logger Logger) *ConnectionCache {
	c.logger = logger
	return c
}

// WithObserver sets the observer attached to clients dialed after the call.
func (c *ConnectionCache) WithObserver(observer observability.Observer) *ConnectionCache {
	c.observer = observer
	return c
}

// Get returns the cached client for uri, dialing it on first use.
// An empty uri resolves to DefaultAddress.
func (c *ConnectionCache) Get(ctx context.Context, uri string) (Conn, error) {
	if uri == "" {
		uri = DefaultAddress()
	}

	c.mu.Lock()
	if client, ok := c.clients[uri]; ok {
		c.mu.Unlock()
		return client, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(uri, func() (interface{}, error) {
		c.mu.Lock()
		if client, ok := c.clients[uri]; ok {
			c.mu.Unlock()
			return client, nil
		}
		c.mu.Unlock()

		client, err := c.dial(ctx, uri)
		if err != nil {
			return nil, err
		}
		if c.logger != nil {
			client.WithLogger(c.logger)
		}
		if c.observer != nil {
			client.WithObserver(c.observer)
		}
		go client.RetryConnection()

		c.mu.Lock()
		c.clients[uri] = client
		c.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*RabbitClient), nil
}

// Provider returns c.Get as a Provider.
func (c *ConnectionCache) Provider() Provider {
	return c.Get
}

// Close shuts down every cached client and empties the cache.
func (c *ConnectionCache) Close() {
	c.mu.Lock()
	clients := c.clients
	c.clients = make(map[string]*RabbitClient)
	c.mu.Unlock()

	for _, client := range clients {
		client.GracefulShutdown()
	}
}

var defaultCache = NewConnectionCache()

// DefaultProvider returns process-wide shared connections, one per URI.
func DefaultProvider(ctx context.Context, uri string) (Conn, error) {
	return defaultCache.Get(ctx, uri)
}
