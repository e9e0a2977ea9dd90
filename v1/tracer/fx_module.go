package tracer

import "go.uber.org/fx"

// FXModule provides *TracerClient built from a tracer.Config and flushes
// pending spans when the application stops. minion.FXModule picks the client
// up to trace every dispatched message.
//
//	app := fx.New(
//	    fx.Supply(tracer.Config{ServiceName: "billing-worker"}),
//	    tracer.FXModule,
//	    minion.FXModule,
//	)
var FXModule = fx.Module("tracer",
	fx.Provide(NewClient),
	fx.Invoke(RegisterTracerLifecycle),
)

// RegisterTracerLifecycle shuts the provider down on stop. Spans still
// buffered are exported first when export is enabled.
func RegisterTracerLifecycle(lc fx.Lifecycle, client *TracerClient) {
	lc.Append(fx.Hook{OnStop: client.Shutdown})
}
