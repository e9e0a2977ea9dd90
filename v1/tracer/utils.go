package tracer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	traceSpan "go.opentelemetry.io/otel/trace"
)

// RecordErrorOnSpan records an error on a span and sets its status to error.
//
// Example:
//
//	result, err := handler(ctx, msg)
//	if err != nil {
//	    tracer.RecordErrorOnSpan(span, err)
//	}
func (t *TracerClient) RecordErrorOnSpan(span traceSpan.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// StartSpan creates a new span with the given name and returns an updated context
// containing the span. The span becomes a child of any span already in ctx.
// The caller must End the span.
func (t *TracerClient) StartSpan(ctx context.Context, name string) (context.Context, traceSpan.Span) {
	return t.tracer.Tracer("github.com/Aleph-Alpha/minion").Start(ctx, name)
}

// SetAttributes adds attributes to a span. Values can be strings, ints, int64s,
// float64s or booleans; other types are converted with fmt.Sprint.
func (t *TracerClient) SetAttributes(span traceSpan.Span, attrs map[string]interface{}) {
	if len(attrs) == 0 {
		return
	}

	attributes := make([]attribute.KeyValue, 0, len(attrs))

	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			attributes = append(attributes, attribute.String(k, val))
		case int:
			attributes = append(attributes, attribute.Int(k, val))
		case int64:
			attributes = append(attributes, attribute.Int64(k, val))
		case float64:
			attributes = append(attributes, attribute.Float64(k, val))
		case bool:
			attributes = append(attributes, attribute.Bool(k, val))
		default:
			attributes = append(attributes, attribute.String(k, fmt.Sprint(val)))
		}
	}

	span.SetAttributes(attributes...)
}

// GetCarrier extracts the trace context of ctx as W3C headers
// ("traceparent", "tracestate", "baggage") for transmission in message headers.
//
// Example:
//
//	headers := tracerClient.GetCarrier(ctx)
//	err := publish(ctx, message, "", rabbit.Properties{Headers: toTable(headers)})
func (t *TracerClient) GetCarrier(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	t.propagator.Inject(ctx, carrier)
	return carrier
}

// SetCarrierOnContext injects trace information carried by headers into ctx.
// This is the complement to GetCarrier, used on the consuming side so spans
// created while handling a message join the producer's trace.
func (t *TracerClient) SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context {
	return t.propagator.Extract(ctx, propagation.MapCarrier(carrier))
}
