// Package tracer wraps OpenTelemetry for span creation and for propagating
// trace context through message headers.
//
// A publisher injects the carrier into the outgoing headers and the consuming
// side extracts it before starting its own span, so one trace covers the
// publish, the broker hop and the handler:
//
//	// producer
//	headers := tracerClient.GetCarrier(ctx)
//
//	// consumer
//	ctx = tracerClient.SetCarrierOnContext(ctx, headers)
//	ctx, span := tracerClient.StartSpan(ctx, "minion.handle")
//	defer span.End()
//
// minion services accept a *TracerClient through minion.WithTracer and do this
// automatically for every dispatch and publish.
package tracer
