package minion

import (
	"context"
	"time"

	"github.com/Aleph-Alpha/minion/v1/observability"
)

// inFlightTracker is implemented by observers that keep an in-flight gauge.
type inFlightTracker interface {
	InFlight(queue string, delta float64)
}

func (s *Service) observeOperation(meta Metadata, duration time.Duration, err error, size int64) {
	if s.cfg.observer == nil {
		return
	}
	s.cfg.observer.ObserveOperation(observability.OperationContext{
		Component:   "minion",
		Operation:   "handle",
		Resource:    s.opts.Name,
		SubResource: meta.RoutingKey,
		Duration:    duration,
		Error:       err,
		Size:        size,
		Metadata: map[string]string{
			"exchange": meta.Exchange,
		},
	})
}

func (s *Service) trackInFlight(delta float64) {
	if t, ok := s.cfg.observer.(inFlightTracker); ok {
		t.InFlight(s.opts.Name, delta)
	}
}

func (s *Service) logDebug(ctx context.Context, msg string, fields map[string]interface{}) {
	if s.opts.Logger != nil {
		LoggerFromContext(ctx).DebugWithContext(ctx, msg, nil, fields)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, fields map[string]interface{}) {
	if s.opts.Logger != nil {
		LoggerFromContext(ctx).InfoWithContext(ctx, msg, nil, fields)
	}
}

// logError is used for failures that have no caller to return to.
func (s *Service) logError(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	if s.opts.Logger != nil {
		LoggerFromContext(ctx).ErrorWithContext(ctx, msg, err, fields)
	}
}
