package minion

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fieldsOf flattens the field maps of a log call.
func fieldsOf(maps []map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// minionFields returns the nested "minion" field of a log call.
func minionFields(t *testing.T, fields map[string]interface{}) map[string]interface{} {
	t.Helper()
	m, ok := fields["minion"].(map[string]interface{})
	require.True(t, ok, "no minion field in %v", fields)
	return m
}

func TestNewLoggerContextUsesEventIDHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := NewMockLogger(ctrl)

	var fields map[string]interface{}
	log.EXPECT().InfoWithContext(gomock.Any(), "hello", nil, gomock.Any()).
		Do(func(ctx context.Context, msg string, err error, f ...map[string]interface{}) {
			fields = fieldsOf(f)
		})

	ctx := NewLoggerContext(context.Background(), log, Metadata{
		RoutingKey: "orders.created",
		MessageID:  "m-1",
		Headers:    map[string]interface{}{"eventId": "e-42"},
	})
	LoggerFromContext(ctx).InfoWithContext(ctx, "hello", nil)

	m := minionFields(t, fields)
	assert.Equal(t, "e-42", m["eventId"])
	assert.Equal(t, "orders.created", m["routingKey"])
	assert.Equal(t, "m-1", m["messageId"])
}

func TestNewLoggerContextGeneratesEventID(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := NewMockLogger(ctrl)

	var fields map[string]interface{}
	log.EXPECT().WarnWithContext(gomock.Any(), "hello", nil, gomock.Any()).
		Do(func(ctx context.Context, msg string, err error, f ...map[string]interface{}) {
			fields = fieldsOf(f)
		})

	ctx := NewLoggerContext(context.Background(), log, Metadata{})
	LoggerFromContext(ctx).WarnWithContext(ctx, "hello", nil)

	id, ok := minionFields(t, fields)["eventId"].(string)
	require.True(t, ok)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestNewLoggerContextWithoutLogger(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, NewLoggerContext(ctx, nil, Metadata{}))
	assert.IsType(t, nopLogger{}, LoggerFromContext(ctx))
}

func TestInjectFieldFromMessageValidatesArguments(t *testing.T) {
	log := NewMockLogger(gomock.NewController(t))

	_, err := InjectFieldFromMessage("orderId", "id", nil)
	assert.Error(t, err)
	_, err = InjectFieldFromMessage("", "id", log)
	assert.Error(t, err)
	_, err = InjectFieldFromMessage("orderId", "", log)
	assert.Error(t, err)
}

func TestInjectFieldFromMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := NewMockLogger(ctrl)

	var fields map[string]interface{}
	log.EXPECT().InfoWithContext(gomock.Any(), "handled", nil, gomock.Any()).
		Do(func(ctx context.Context, msg string, err error, f ...map[string]interface{}) {
			fields = fieldsOf(f)
		})

	wrap, err := InjectFieldFromMessage("orderId", "id", log)
	require.NoError(t, err)

	handler := wrap(func(ctx context.Context, message any, meta Metadata) (any, error) {
		LoggerFromContext(ctx).InfoWithContext(ctx, "handled", nil)
		return "done", nil
	})

	value, err := handler(context.Background(), map[string]any{"id": "o-7"}, Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "done", value)
	assert.Equal(t, "o-7", fields["orderId"])
}

func TestDefaultLoggingEventHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := NewMockLogger(ctrl)
	log.EXPECT().DebugWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	ready := make(chan struct{}, 1)
	response := make(chan map[string]interface{}, 1)
	message := make(chan map[string]interface{}, 1)

	log.EXPECT().InfoWithContext(gomock.Any(), gomock.Any(), nil, gomock.Any()).AnyTimes().
		Do(func(ctx context.Context, msg string, err error, f ...map[string]interface{}) {
			switch msg {
			case "Minion is ready to consume":
				ready <- struct{}{}
			case "Minion got message":
				message <- fieldsOf(f)
			case "Minion received response":
				response <- fieldsOf(f)
			}
		})

	svc, _, _ := newTestService(t, Handler{Name: "jobs", Fn: echo}, Settings{Logger: log})
	handlers, err := AddDefaultLoggingEventHandlers(svc, LoggingOptions{MessageKey: "msg", ResponseKey: "resp"})
	require.NoError(t, err)
	defer handlers.Remove()

	ctx := context.Background()
	require.NoError(t, svc.Start(ctx))
	waitFor(t, ready)

	require.NoError(t, svc.Publish(ctx, "hi", ""))

	got := waitFor(t, message)
	assert.Equal(t, "hi", got["msg"])
	assert.Equal(t, "jobs", minionFields(t, got)["name"])
	assert.NotEmpty(t, minionFields(t, got)["eventId"])

	got = waitFor(t, response)
	assert.Equal(t, "hi", got["resp"])
}

func TestDefaultLoggingEventHandlersRequireService(t *testing.T) {
	_, err := AddDefaultLoggingEventHandlers(nil, LoggingOptions{})
	assert.Error(t, err)
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, "raw", printable([]byte("raw")))
	assert.Equal(t, 3, printable(3))
}
