package minion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type loggerKey struct{}

// fieldLogger adds a fixed set of fields to every entry of its parent.
type fieldLogger struct {
	parent Logger
	fields map[string]interface{}
}

// WithFields returns a logger that adds fields to every entry of l.
func WithFields(l Logger, fields map[string]interface{}) Logger {
	if l == nil {
		l = nopLogger{}
	}
	return &fieldLogger{parent: l, fields: fields}
}

func (l *fieldLogger) with(fields []map[string]interface{}) []map[string]interface{} {
	return append([]map[string]interface{}{l.fields}, fields...)
}

func (l *fieldLogger) DebugWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.parent.DebugWithContext(ctx, msg, err, l.with(fields)...)
}

func (l *fieldLogger) InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.parent.InfoWithContext(ctx, msg, err, l.with(fields)...)
}

func (l *fieldLogger) WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.parent.WarnWithContext(ctx, msg, err, l.with(fields)...)
}

func (l *fieldLogger) ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.parent.ErrorWithContext(ctx, msg, err, l.with(fields)...)
}

type nopLogger struct{}

func (nopLogger) DebugWithContext(context.Context, string, error, ...map[string]interface{}) {}
func (nopLogger) InfoWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (nopLogger) WarnWithContext(context.Context, string, error, ...map[string]interface{})  {}
func (nopLogger) ErrorWithContext(context.Context, string, error, ...map[string]interface{}) {}

// ContextWithLogger returns a copy of ctx carrying l.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the request logger of ctx, or a logger that
// discards everything when there is none.
func LoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok && l != nil {
		return l
	}
	return nopLogger{}
}

// NewLoggerContext attaches a child of the context's logger, or of l when ctx
// has none. The child adds a "minion" field holding the message's eventId,
// routingKey and messageId. The event id comes from the "eventId" header and
// is generated when missing.
func NewLoggerContext(ctx context.Context, l Logger, meta Metadata) context.Context {
	return newLoggerContext(ctx, l, meta, "")
}

func newLoggerContext(ctx context.Context, l Logger, meta Metadata, name string) context.Context {
	parent, ok := ctx.Value(loggerKey{}).(Logger)
	if !ok || parent == nil {
		parent = l
	}
	if parent == nil {
		return ctx
	}

	eventID, _ := meta.Headers["eventId"].(string)
	if eventID == "" {
		eventID = uuid.NewString()
	}

	fields := map[string]interface{}{
		"eventId":    eventID,
		"routingKey": meta.RoutingKey,
		"messageId":  meta.MessageID,
	}
	if name != "" {
		fields["name"] = name
	}
	return ContextWithLogger(ctx, WithFields(parent, map[string]interface{}{"minion": fields}))
}

// InjectFieldFromMessage returns a handler wrapper that adds messageField of a
// map-shaped message to the request logger as loggedField.
//
//	withOrder, _ := minion.InjectFieldFromMessage("orderId", "id", log)
//	handler := minion.Handler{Name: "orders.created", Fn: withOrder(handle)}
func InjectFieldFromMessage(loggedField, messageField string, l Logger) (func(HandlerFunc) HandlerFunc, error) {
	if l == nil {
		return nil, errors.New("logger is mandatory argument to InjectFieldFromMessage")
	}
	if loggedField == "" {
		return nil, errors.New("loggedField is mandatory argument to InjectFieldFromMessage")
	}
	if messageField == "" {
		return nil, errors.New("messageField is mandatory argument to InjectFieldFromMessage")
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, message any, meta Metadata) (any, error) {
			parent, ok := ctx.Value(loggerKey{}).(Logger)
			if !ok || parent == nil {
				parent = l
			}
			var value any
			if m, ok := message.(map[string]any); ok {
				value = m[messageField]
			}
			ctx = ContextWithLogger(ctx, WithFields(parent, map[string]interface{}{loggedField: value}))
			return next(ctx, message, meta)
		}
	}, nil
}

// LoggingOptions select which payloads the default logging handlers include.
type LoggingOptions struct {
	// MessageKey, when set, logs the message under this field.
	MessageKey string

	// ResponseKey, when set, logs the handler response under this field.
	ResponseKey string
}

// DefaultLoggingHandlers are the subscriptions made by AddDefaultLoggingEventHandlers.
type DefaultLoggingHandlers struct {
	Ready    ReadyFunc
	Message  MessageFunc
	Response ResponseFunc
	Error    ErrorFunc

	unsubscribe []func()
}

// Remove unsubscribes all four handlers.
func (h *DefaultLoggingHandlers) Remove() {
	for _, fn := range h.unsubscribe {
		fn()
	}
}

// AddDefaultLoggingEventHandlers subscribes handlers that log every event of
// svc through the request logger of the event's context.
func AddDefaultLoggingEventHandlers(svc *Service, opts LoggingOptions) (*DefaultLoggingHandlers, error) {
	if svc == nil {
		return nil, errors.New("service is a mandatory argument to AddDefaultLoggingEventHandlers")
	}

	h := &DefaultLoggingHandlers{
		Error: func(ctx context.Context, err error) {
			LoggerFromContext(ctx).ErrorWithContext(ctx, "Minion handler error", err)
		},
		Message: func(ctx context.Context, message any, meta Metadata) {
			fields := map[string]interface{}{
				"metadata": map[string]interface{}{
					"exchange":      meta.Exchange,
					"routingKey":    meta.RoutingKey,
					"messageId":     meta.MessageID,
					"correlationId": meta.CorrelationID,
					"contentType":   meta.ContentType,
					"redelivered":   meta.Redelivered,
					"headers":       meta.Headers,
				},
			}
			if opts.MessageKey != "" {
				fields[opts.MessageKey] = printable(message)
			}
			LoggerFromContext(ctx).InfoWithContext(ctx, "Minion got message", nil, fields)
		},
		Ready: func(ctx context.Context, queue QueueInfo) {
			LoggerFromContext(ctx).InfoWithContext(ctx, "Minion is ready to consume", nil, map[string]interface{}{
				"queue": queue.Name,
			})
		},
		Response: func(ctx context.Context, response any) {
			fields := map[string]interface{}{}
			if opts.ResponseKey != "" {
				fields[opts.ResponseKey] = printable(response)
			}
			LoggerFromContext(ctx).InfoWithContext(ctx, "Minion received response", nil, fields)
		},
	}

	h.unsubscribe = []func(){
		svc.OnError(h.Error),
		svc.OnMessage(h.Message),
		svc.OnReady(h.Ready),
		svc.OnResponse(h.Response),
	}
	return h, nil
}

func printable(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return v
}
