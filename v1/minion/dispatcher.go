package minion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aleph-Alpha/minion/v1/rabbit"
	"go.opentelemetry.io/otel/trace"
)

// SpanName is the name of the span around each handler call.
const SpanName = "minion.handle"

type outcome struct {
	value any
	err   error
}

// Handle runs the handler on message as if it had been delivered with meta:
// the message event is emitted, the validator and handler run, and the first
// of handler completion or Options.Timeout wins. Nothing is acked.
func (s *Service) Handle(ctx context.Context, message any, meta Metadata) (any, error) {
	ctx = s.requestContext(ctx, meta)
	ctx, span := s.startSpan(ctx, meta)

	s.emitMessage(ctx, message, meta)
	o := s.await(s.invoke(ctx, message, meta))
	s.endSpan(span, o.err)
	return o.value, o.err
}

// consume is the queue callback. It runs on the consumer goroutine, so
// message events and handler launches follow delivery order; settlement
// happens on a goroutine per message. A body that cannot be decoded is
// emitted as raw bytes on the message event, then nacked without requeue.
func (s *Service) consume(msg rabbit.Message) {
	start := time.Now()
	meta := msg.Metadata()
	ctx := s.requestContext(context.Background(), meta)

	payload, err := decode(meta)
	if err != nil {
		s.emitMessage(ctx, meta.Body, meta)
		s.settle(ctx, msg, meta.Body, meta, outcome{err: NoRequeue(err)}, start)
		return
	}

	ctx, span := s.startSpan(ctx, meta)
	if s.opts.Debug {
		s.logDebug(ctx, "Dispatching message", map[string]interface{}{
			"routingKey": meta.RoutingKey,
			"size":       len(meta.Body),
		})
	}

	s.emitMessage(ctx, payload, meta)
	result := s.invoke(ctx, payload, meta)

	s.inflight.Add(1)
	s.trackInFlight(1)
	go func() {
		defer s.inflight.Done()
		defer s.trackInFlight(-1)

		o := s.await(result)
		s.endSpan(span, o.err)
		s.settle(ctx, msg, payload, meta, o, start)
	}()
}

// invoke runs the validator and the handler on their own goroutine. The
// result channel is buffered so a late result after a timeout is dropped.
func (s *Service) invoke(ctx context.Context, message any, meta Metadata) <-chan outcome {
	result := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- outcome{err: panicError(r)}
			}
		}()

		if s.handler.Validate != nil {
			if err := s.handler.Validate(message); err != nil {
				result <- outcome{err: NoRequeue(fmt.Errorf("%w: %w", ErrValidation, err))}
				return
			}
		}

		value, err := s.handler.Fn(ctx, message, meta)
		result <- outcome{value: value, err: err}
	}()

	return result
}

// await returns the handler outcome, or ErrAckTimeout if Options.Timeout
// passes first. The handler is not cancelled.
func (s *Service) await(result <-chan outcome) outcome {
	timer := time.NewTimer(s.opts.Timeout)
	defer timer.Stop()

	select {
	case o := <-result:
		return o
	case <-timer.C:
		return outcome{err: ErrAckTimeout}
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.New(fmt.Sprint(r))
}

func (s *Service) requestContext(ctx context.Context, meta Metadata) context.Context {
	if s.opts.Logger == nil {
		return ctx
	}
	return newLoggerContext(ctx, s.opts.Logger, meta, s.opts.Name)
}

// startSpan continues the trace carried in the message headers.
func (s *Service) startSpan(ctx context.Context, meta Metadata) (context.Context, trace.Span) {
	if s.cfg.tracer == nil {
		return ctx, nil
	}

	carrier := make(map[string]string, len(meta.Headers))
	for k, v := range meta.Headers {
		if str, ok := v.(string); ok {
			carrier[k] = str
		}
	}
	ctx = s.cfg.tracer.SetCarrierOnContext(ctx, carrier)

	ctx, span := s.cfg.tracer.StartSpan(ctx, SpanName)
	s.cfg.tracer.SetAttributes(span, map[string]interface{}{
		"messaging.system":                 "rabbitmq",
		"messaging.destination.name":       s.opts.Name,
		"messaging.rabbitmq.routing_key":   meta.RoutingKey,
		"messaging.message.id":             meta.MessageID,
		"messaging.message.body.size":      len(meta.Body),
		"messaging.rabbitmq.redelivered":   meta.Redelivered,
		"messaging.rabbitmq.exchange_name": meta.Exchange,
	})
	return ctx, span
}

func (s *Service) endSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		s.cfg.tracer.RecordErrorOnSpan(span, err)
	}
	span.End()
}
