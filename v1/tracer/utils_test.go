package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingClient(t *testing.T) (*TracerClient, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewClientFromProvider(tp), recorder
}

func TestCarrierRoundTrip(t *testing.T) {
	client, _ := newRecordingClient(t)

	ctx, span := client.StartSpan(context.Background(), "publish")
	carrier := client.GetCarrier(ctx)
	span.End()

	require.Contains(t, carrier, "traceparent")

	extracted := client.SetCarrierOnContext(context.Background(), carrier)
	_, child := client.StartSpan(extracted, "handle")
	defer child.End()

	assert.Equal(t, span.SpanContext().TraceID(), child.SpanContext().TraceID())
}

func TestRecordErrorOnSpan(t *testing.T) {
	client, recorder := newRecordingClient(t)

	_, span := client.StartSpan(context.Background(), "handle")
	client.RecordErrorOnSpan(span, errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
}

func TestSetAttributes(t *testing.T) {
	client, recorder := newRecordingClient(t)

	_, span := client.StartSpan(context.Background(), "handle")
	client.SetAttributes(span, map[string]interface{}{
		"queue":    "billing",
		"attempt":  2,
		"size":     int64(10),
		"ratio":    0.5,
		"redelive": true,
		"keys":     []string{"a"},
	})
	span.End()

	attrs := map[string]string{}
	for _, kv := range recorder.Ended()[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "billing", attrs["queue"])
	assert.Equal(t, "2", attrs["attempt"])
	assert.Equal(t, "10", attrs["size"])
	assert.Equal(t, "true", attrs["redelive"])
	assert.Equal(t, "[a]", attrs["keys"])
}
