package rabbit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Aleph-Alpha/minion/v1/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultHeartbeat        = 2 * time.Second
	defaultDialTimeout      = 30 * time.Second
	defaultDelayToReconnect = time.Second
)

// RabbitClient represents a client for interacting with RabbitMQ.
// It owns one AMQP connection, hands out exchanges and queues that each
// hold their own channel, and re-establishes the connection when it drops.
type RabbitClient struct {
	// cfg stores the configuration for this RabbitMQ client
	cfg Config

	// conn is the underlying AMQP connection to the RabbitMQ server
	conn *amqp.Connection

	// mu protects concurrent access to conn and channels
	mu sync.RWMutex

	// channels are closed on shutdown
	channels map[*amqp.Channel]struct{}

	handlersMu    sync.RWMutex
	errorHandlers map[uint64]func(error)
	nextHandlerID uint64

	logger   Logger
	observer observability.Observer

	// shutdownSignal is closed when the client is being shut down
	shutdownSignal chan struct{}

	closeShutdownOnce sync.Once
}

// NewClient creates a new RabbitMQ client and establishes its connection.
// Exchanges and queues are declared on demand through Exchange.
//
// Returns a new RabbitClient instance that is ready to use.
// The client does not monitor the connection until RetryConnection is started,
// which the fx module and DefaultProvider both do.
//
// Example:
//
//	client, err := rabbit.NewClient(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//	go client.RetryConnection()
//	defer client.GracefulShutdown()
func NewClient(config Config) (*RabbitClient, error) {
	applyDefaults(&config)

	con, err := newConnection(config)
	if err != nil {
		return nil, err
	}

	return &RabbitClient{
		cfg:            config,
		conn:           con,
		channels:       make(map[*amqp.Channel]struct{}),
		errorHandlers:  make(map[uint64]func(error)),
		shutdownSignal: make(chan struct{}),
	}, nil
}

// Dial connects to the broker at the given AMQP URI.
func Dial(ctx context.Context, uri string) (*RabbitClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewClient(Config{Connection: Connection{URL: uri}})
}

// WithObserver attaches an observer to the client for publish and consume metrics.
// This method uses the builder pattern and returns the client for method chaining.
func (rb *RabbitClient) WithObserver(observer observability.Observer) *RabbitClient {
	rb.observer = observer
	return rb
}

// WithLogger attaches a logger used for connection monitoring and consumer loops.
func (rb *RabbitClient) WithLogger(logger Logger) *RabbitClient {
	rb.logger = logger
	return rb
}

// Config returns the effective configuration, defaults applied.
func (rb *RabbitClient) Config() Config {
	return rb.cfg
}

// Exchange declares a durable exchange of the given kind on a dedicated channel.
// The default exchange (empty name) is never declared.
func (rb *RabbitClient) Exchange(ctx context.Context, kind, name string) (Exchange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ex := &exchange{client: rb, name: name, kind: kind}
	ch, err := ex.openChannel()
	if err != nil {
		return nil, err
	}
	ex.ch = ch
	return ex, nil
}

// NotifyError registers fn for connection failures observed by RetryConnection.
func (rb *RabbitClient) NotifyError(fn func(error)) (cancel func()) {
	rb.handlersMu.Lock()
	id := rb.nextHandlerID
	rb.nextHandlerID++
	rb.errorHandlers[id] = fn
	rb.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			rb.handlersMu.Lock()
			delete(rb.errorHandlers, id)
			rb.handlersMu.Unlock()
		})
	}
}

func (rb *RabbitClient) notifyError(err error) {
	rb.handlersMu.RLock()
	handlers := make([]func(error), 0, len(rb.errorHandlers))
	for _, fn := range rb.errorHandlers {
		handlers = append(handlers, fn)
	}
	rb.handlersMu.RUnlock()

	for _, fn := range handlers {
		fn(err)
	}
}

// channel opens a channel on the current connection and tracks it for shutdown.
func (rb *RabbitClient) channel() (*amqp.Channel, error) {
	select {
	case <-rb.shutdownSignal:
		return nil, ErrShutdown
	default:
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	ch, err := rb.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w: %w", TranslateError(err), err)
	}
	rb.channels[ch] = struct{}{}
	return ch, nil
}

func (rb *RabbitClient) releaseChannel(ch *amqp.Channel) {
	rb.mu.Lock()
	delete(rb.channels, ch)
	rb.mu.Unlock()
	_ = ch.Close()
}

// RetryConnection continuously monitors the RabbitMQ connection and automatically
// re-establishes it if it fails. This method is typically run in a goroutine.
//
// Every close error is passed to the handlers registered with NotifyError before
// reconnecting. Exchanges and queues reopen their channels lazily on the new
// connection. The loop ends when GracefulShutdown is called.
func (rb *RabbitClient) RetryConnection() {
	ctx := context.Background()
outerLoop:
	for {
		rb.mu.RLock()
		conn := rb.conn
		rb.mu.RUnlock()

		errChan := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-rb.shutdownSignal:
			rb.logInfo(ctx, "Stopping RetryConnection loop due to shutdown signal", nil)
			return

		case amqpErr, ok := <-errChan:
			if !ok || amqpErr == nil {
				// closed without error: either we closed it or the server did cleanly
				select {
				case <-rb.shutdownSignal:
					return
				default:
				}
				amqpErr = amqp.ErrClosed
			}
			rb.logWarn(ctx, "RabbitMQ connection closed, retrying", map[string]interface{}{
				"error": amqpErr.Error(),
			})
			rb.notifyError(fmt.Errorf("connection lost: %w: %w", TranslateError(amqpErr), amqpErr))

			for {
				select {
				case <-rb.shutdownSignal:
					rb.logInfo(ctx, "Stopping RetryConnection loop due to shutdown signal", nil)
					return
				default:
				}

				newConn, err := newConnection(rb.cfg)
				if err != nil {
					rb.logError(ctx, "RabbitMQ reconnection failed", map[string]interface{}{
						"error": err.Error(),
					})
					time.Sleep(rb.cfg.Channel.DelayToReconnect)
					continue
				}

				rb.mu.Lock()
				rb.conn = newConn
				rb.channels = make(map[*amqp.Channel]struct{})
				rb.mu.Unlock()

				rb.logInfo(ctx, "Successfully reconnected to RabbitMQ", nil)
				continue outerLoop
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Connection.Heartbeat <= 0 {
		cfg.Connection.Heartbeat = defaultHeartbeat
	}
	if cfg.Connection.DialTimeout <= 0 {
		cfg.Connection.DialTimeout = defaultDialTimeout
	}
	if cfg.Channel.DelayToReconnect <= 0 {
		cfg.Channel.DelayToReconnect = defaultDelayToReconnect
	}
}

// connectionURL returns Connection.URL when set, otherwise an AMQP URI assembled
// from the individual fields.
func connectionURL(cfg Connection) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	scheme := "amqp"
	if cfg.IsSSLEnabled {
		scheme = "amqps"
	}
	u := url.URL{Scheme: scheme, Host: cfg.Host}
	if cfg.Port != 0 {
		u.Host = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	if cfg.VHost != "" {
		u.Path = "/" + strings.TrimPrefix(cfg.VHost, "/")
	}
	return u.String()
}

// newConnection dials RabbitMQ, with client certificates when UseCert is set.
func newConnection(cfg Config) (*amqp.Connection, error) {
	amqpCfg := amqp.Config{
		Heartbeat: cfg.Connection.Heartbeat,
		Dial:      amqp.DefaultDial(cfg.Connection.DialTimeout),
	}

	if cfg.Connection.IsSSLEnabled && cfg.Connection.UseCert {
		tlsConfig, err := newTLSConfig(cfg.Connection)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		amqpCfg.TLSClientConfig = tlsConfig
	}

	conn, err := amqp.DialConfig(connectionURL(cfg.Connection), amqpCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbit: %w: %w", ErrConnectionFailed, err)
	}
	return conn, nil
}

func newTLSConfig(cfg Connection) (*tls.Config, error) {
	caCert, err := os.ReadFile(cfg.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	caCertPool := x509.NewCertPool()
	caCertPool.AppendCertsFromPEM(caCert)

	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		ServerName:   cfg.ServerName,
	}, nil
}
