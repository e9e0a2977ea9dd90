// Package minion turns a handler function into a RabbitMQ queue worker, or a
// bare configuration into a publisher.
//
// A Service binds a queue named after its handler to an exchange, runs the
// handler on every delivery under a completion deadline, and acks or nacks
// the message based on the outcome. Lifecycle and outcomes are reported
// through typed events.
//
// # Configuration
//
// Settings hold optional values. New and NewService merge three layers, the
// built-in defaults, the handler's declared settings and an override, and then
// derive the remaining names:
//
//	Name               handler name
//	ExchangeName       Name (or the injected exchange's name)
//	ExchangeType       "topic"
//	Key                Name
//	DeadLetterExchange ExchangeName + ".dead"; NoDeadLetter() disables it
//	Durable            true
//	AutoStart          true
//	Timeout            30s
//
// Invalid combinations fail construction with ErrConfiguration.
//
// # Handling
//
//	svc, err := minion.NewService(minion.Handler{
//		Name: "orders.created",
//		Fn: func(ctx context.Context, msg any, meta minion.Metadata) (any, error) {
//			minion.LoggerFromContext(ctx).InfoWithContext(ctx, "order", nil)
//			return true, nil
//		},
//	}, minion.Settings{Prefetch: minion.Int(10)})
//
// The handler's result decides the acknowledgement:
//
//   - nil error: the message is acked and the value emitted on OnResponse
//   - error: the message is nacked and a *HandlerError emitted on OnError
//   - no result within Timeout: as an error, with ErrAckTimeout
//
// Failures are requeued when Settings.Requeue is set. Wrapping the error with
// Requeue or NoRequeue overrides that per message. Validation and decode
// failures are never requeued.
//
// Handlers run on their own goroutine. A timed out handler is not cancelled;
// its late result is discarded.
//
// # Publishing
//
//	publish, err := minion.NewPublisher(minion.Settings{
//		ExchangeName: minion.String("orders"),
//	})
//	err = publish(ctx, map[string]any{"id": 1}, "orders.created")
//
// A Service publishes the same way on its own exchange and key.
//
// # Connections
//
// A Settings.Exchange is reused as is, so services sharing one also share its
// connection and no exchange is declared. Otherwise Settings.Rabbit is used, or
// the connection provider is asked for Settings.RabbitURL; the default provider
// keeps one connection per URL.
//
// # FX Module Integration
//
//	app := fx.New(
//		logger.FXModule,
//		rabbit.FXModule,
//		minion.FXModule,
//		fx.Invoke(func(r *minion.Registry) error {
//			_, err := r.NewService(handler, minion.Settings{})
//			return err
//		}),
//	)
package minion
