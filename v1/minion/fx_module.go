package minion

import (
	"context"
	"errors"
	"sync"

	"github.com/Aleph-Alpha/minion/v1/logger"
	"github.com/Aleph-Alpha/minion/v1/observability"
	"github.com/Aleph-Alpha/minion/v1/rabbit"
	"github.com/Aleph-Alpha/minion/v1/tracer"
	"go.uber.org/fx"
)

// FXModule provides a *Registry that builds services and publishers on the
// application's rabbit connection, logger, observer and tracer, and shuts the
// services down when the application stops.
//
// Usage:
//
//	app := fx.New(
//	    logger.FXModule,
//	    rabbit.FXModule,
//	    minion.FXModule,
//	    fx.Invoke(func(r *minion.Registry) error {
//	        _, err := r.NewService(minion.Handler{Name: "orders.created", Fn: handle}, minion.Settings{})
//	        return err
//	    }),
//	)
var FXModule = fx.Module("minion",
	fx.Provide(
		NewRegistry,
	),
	fx.Invoke(RegisterRegistryLifecycle),
)

// RegistryParams groups the optional collaborators of a Registry.
type RegistryParams struct {
	fx.In

	Conn     rabbit.Conn            `optional:"true"`
	Logger   logger.Logger          `optional:"true"`
	Observer observability.Observer `optional:"true"`
	Tracer   *tracer.TracerClient   `optional:"true"`
}

// Registry creates services and publishers with shared collaborators and
// keeps track of the services for shutdown.
type Registry struct {
	logger Logger
	opts   []Option

	mu       sync.Mutex
	services []*Service
}

// NewRegistry builds a Registry. Without an injected connection, services
// fall back to rabbit.DefaultProvider.
func NewRegistry(params RegistryParams) *Registry {
	r := &Registry{}

	if params.Conn != nil {
		conn := params.Conn
		r.opts = append(r.opts, WithConnectionProvider(func(context.Context, string) (rabbit.Conn, error) {
			return conn, nil
		}))
	}
	if params.Observer != nil {
		r.opts = append(r.opts, WithObserver(params.Observer))
	}
	if params.Tracer != nil {
		r.opts = append(r.opts, WithTracer(params.Tracer))
	}
	if params.Logger != nil {
		r.logger = params.Logger
	}
	return r
}

// NewService creates a service; the registry's logger is used unless the
// handler or override sets one. opts are applied after the registry's own.
func (r *Registry) NewService(handler Handler, override Settings, opts ...Option) (*Service, error) {
	if r.logger != nil && handler.Settings.Logger == nil && override.Logger == nil {
		override.Logger = r.logger
	}

	svc, err := NewService(handler, override, append(append([]Option{}, r.opts...), opts...)...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.services = append(r.services, svc)
	r.mu.Unlock()
	return svc, nil
}

// NewPublisher creates a publisher with the registry's collaborators.
func (r *Registry) NewPublisher(settings Settings, opts ...Option) (Publisher, error) {
	return NewPublisher(settings, append(append([]Option{}, r.opts...), opts...)...)
}

// Services returns the services created so far.
func (r *Registry) Services() []*Service {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Service{}, r.services...)
}

// Shutdown stops every service and waits for in-flight handlers.
func (r *Registry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, svc := range r.Services() {
		if err := svc.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RegisterRegistryLifecycle shuts the registry's services down on stop, before
// the rabbit module closes the connection.
func RegisterRegistryLifecycle(lc fx.Lifecycle, r *Registry) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.Shutdown(ctx)
		},
	})
}
