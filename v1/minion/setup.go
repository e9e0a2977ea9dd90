package minion

import (
	"context"
	"fmt"
	"sync"

	"github.com/Aleph-Alpha/minion/v1/observability"
	"github.com/Aleph-Alpha/minion/v1/rabbit"
)

// Option configures the collaborators of a service or publisher.
type Option func(*config)

type config struct {
	provider  rabbit.Provider
	observer  observability.Observer
	tracer    Tracer
	subscribe []func(*Service)
}

func newConfig(opts []Option) config {
	cfg := config{provider: rabbit.DefaultProvider}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithConnectionProvider sets how connections are obtained when neither an
// exchange nor a connection is injected. The default is rabbit.DefaultProvider.
func WithConnectionProvider(provider rabbit.Provider) Option {
	return func(c *config) {
		if provider != nil {
			c.provider = provider
		}
	}
}

// WithObserver reports every settled message as a "handle" operation.
func WithObserver(observer observability.Observer) Option {
	return func(c *config) { c.observer = observer }
}

// WithTracer wraps each handler call in a span and propagates trace context
// through published headers.
func WithTracer(tracer Tracer) Option {
	return func(c *config) { c.tracer = tracer }
}

// WithSubscriptions runs fn on the new service before it auto-starts, so that
// no event is missed.
func WithSubscriptions(fn func(*Service)) Option {
	return func(c *config) { c.subscribe = append(c.subscribe, fn) }
}

// Service consumes a queue and dispatches each message to its handler.
// Its identity is the queue name.
type Service struct {
	events

	handler Handler
	opts    Options
	cfg     config
	binding *binding

	// startMu serializes Start and Stop.
	startMu      sync.Mutex
	mu           sync.Mutex
	queue        rabbit.Queue
	cancelNotify func()

	inflight sync.WaitGroup

	// cancelAutoStart aborts a background start that has not bound yet.
	cancelAutoStart context.CancelFunc
}

// New builds a *Service for a Handler target or a Publisher for a
// PublisherConfig target. override has the highest precedence.
//
//	svc, err := minion.New(minion.Handler{
//		Name: "orders.created",
//		Fn: func(ctx context.Context, msg any, meta minion.Metadata) (any, error) {
//			return true, nil
//		},
//	}, minion.Settings{Prefetch: minion.Int(10)})
func New(target Target, override Settings, opts ...Option) (Minion, error) {
	cfg := newConfig(opts)
	switch t := target.(type) {
	case Handler:
		svc, err := newService(t, override, cfg)
		if err != nil {
			return nil, err
		}
		return svc, nil
	case PublisherConfig:
		publisher, err := newPublisher(t, override, cfg)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	}
	return nil, configError("unsupported target %T", target)
}

// NewService resolves handler into a service. Unless AutoStart is false the
// service starts in the background and reports failures on the error event.
func NewService(handler Handler, override Settings, opts ...Option) (*Service, error) {
	return newService(handler, override, newConfig(opts))
}

func newService(handler Handler, override Settings, cfg config) (*Service, error) {
	resolved, err := Resolve(handler, override)
	if err != nil {
		return nil, err
	}

	s := &Service{
		handler: handler,
		opts:    resolved,
		cfg:     cfg,
		binding: newBinding(resolved, cfg.provider),
	}
	s.events.log = s.logError

	for _, fn := range cfg.subscribe {
		fn(s)
	}

	if resolved.AutoStart {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancelAutoStart = cancel
		go s.autoStart(ctx)
	}
	return s, nil
}

// autoStart is Start on the constructor's behalf. A Stop that comes first
// cancels ctx and the service is never bound.
func (s *Service) autoStart(ctx context.Context) {
	info, started, err := s.start(ctx)
	if err != nil && ctx.Err() != nil {
		return
	}
	s.report(info, started, err)
	if err != nil {
		s.logError(s.baseContext(), "Failed to start minion", err, nil)
	}
}

// Name returns the queue name.
func (s *Service) Name() string {
	return s.opts.Name
}

// Options returns the resolved options.
func (s *Service) Options() Options {
	return s.opts
}

// Connection returns the broker connection. With an injected exchange it is
// the exchange's connection; with a provider it is nil until the first bind.
func (s *Service) Connection() rabbit.Conn {
	return s.binding.connection()
}

// Start binds the exchange and queue, begins consuming and emits the ready
// event. It returns once the queue is bound. Calling it on a running service
// does nothing.
func (s *Service) Start(ctx context.Context) error {
	info, started, err := s.start(ctx)
	s.report(info, started, err)
	return err
}

// report emits the outcome of start. It runs outside startMu so that
// subscribers may call Stop.
func (s *Service) report(info QueueInfo, started bool, err error) {
	if err != nil {
		s.emitError(s.baseContext(), err)
		return
	}
	if started {
		s.logInfo(s.baseContext(), "Minion is ready", map[string]interface{}{
			"queue":    info.Name,
			"exchange": info.Exchange,
		})
		s.emitReady(s.baseContext(), info)
	}
}

func (s *Service) start(ctx context.Context) (QueueInfo, bool, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if err := ctx.Err(); err != nil {
		return QueueInfo{}, false, err
	}
	if s.running() {
		return QueueInfo{}, false, nil
	}

	ex, err := s.binding.bindExchange(ctx)
	if err != nil {
		return QueueInfo{}, false, err
	}

	q, err := s.binding.bindQueue(ctx, ex)
	if err != nil {
		return QueueInfo{}, false, err
	}

	if err = q.Consume(ctx, s.consume); err != nil {
		return QueueInfo{}, false, fmt.Errorf("%w: consuming %q: %w", ErrConnection, q.Name(), err)
	}

	var cancelNotify func()
	if conn := s.binding.connection(); conn != nil {
		cancelNotify = conn.NotifyError(func(err error) {
			s.emitError(s.baseContext(), fmt.Errorf("%w: %w", ErrConnection, err))
		})
	}

	s.mu.Lock()
	s.queue = q
	s.cancelNotify = cancelNotify
	s.mu.Unlock()

	return QueueInfo{
		Name:     q.Name(),
		Exchange: ex.Name(),
		Keys:     append([]string{s.opts.Key}, s.opts.Keys...),
	}, true, nil
}

func (s *Service) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue != nil
}

// Stop cancels consumption, including a pending auto start. Handlers already
// running complete and settle their messages. The connection is left open; it
// may be shared. Start may be called again afterwards.
func (s *Service) Stop() error {
	if s.cancelAutoStart != nil {
		s.cancelAutoStart()
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	q, cancelNotify := s.queue, s.cancelNotify
	s.queue, s.cancelNotify = nil, nil
	s.mu.Unlock()

	if q == nil {
		return nil
	}
	if cancelNotify != nil {
		cancelNotify()
	}
	if err := q.Cancel(); err != nil {
		return fmt.Errorf("%w: cancelling %q: %w", ErrConnection, q.Name(), err)
	}
	return nil
}

// Shutdown stops the service and waits for in-flight handlers to settle, or
// for ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish sends message to the service's exchange. An empty key publishes on
// the service's key, so the service receives it.
func (s *Service) Publish(ctx context.Context, message any, key string, props ...Properties) error {
	ex, err := s.binding.bindExchange(ctx)
	if err != nil {
		return err
	}
	return publish(ctx, ex, s.opts, s.cfg.tracer, message, key, props)
}

// baseContext carries the service logger for events not tied to a message.
func (s *Service) baseContext() context.Context {
	ctx := context.Background()
	if s.opts.Logger != nil {
		ctx = ContextWithLogger(ctx, WithFields(s.opts.Logger, map[string]interface{}{
			"minion": map[string]interface{}{"name": s.opts.Name},
		}))
	}
	return ctx
}
