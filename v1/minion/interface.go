package minion

import (
	"context"

	"github.com/Aleph-Alpha/minion/v1/rabbit"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -destination=mock_logger_test.go -package=minion -self_package=github.com/Aleph-Alpha/minion/v1/minion github.com/Aleph-Alpha/minion/v1/minion Logger
//go:generate mockgen -destination=mock_message_test.go -package=minion github.com/Aleph-Alpha/minion/v1/rabbit Message

// Metadata is the broker-supplied delivery attributes of a message.
type Metadata = rabbit.Metadata

// Properties are the per-message publishing attributes.
type Properties = rabbit.Properties

// Minion is what New returns: either a *Service or a Publisher. Both publish.
type Minion interface {
	Publish(ctx context.Context, message any, key string, props ...Properties) error
}

// Logger is the logging surface used by services. *logger.LoggerClient
// satisfies it.
type Logger interface {
	DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Tracer starts spans around handler invocations and carries trace context
// through message headers. *tracer.TracerClient satisfies it.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, trace.Span)
	RecordErrorOnSpan(span trace.Span, err error)
	SetAttributes(span trace.Span, attrs map[string]interface{})
	GetCarrier(ctx context.Context) map[string]string
	SetCarrierOnContext(ctx context.Context, carrier map[string]string) context.Context
}
