// Package rabbit provides the RabbitMQ broker connection used by minion services
// and publishers.
//
// The package exposes a small surface: a Conn hands out Exchanges, an Exchange
// publishes and prepares Queues, and a Queue binds and consumes Messages.
// *RabbitClient implements Conn on top of github.com/rabbitmq/amqp091-go.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - Conn, Exchange, Queue and Message interfaces define the broker contract
//   - RabbitClient struct: concrete implementation of Conn
//   - NewClient constructor: returns *RabbitClient
//   - FX module: provides both *RabbitClient and the Conn interface
//
// Core Features:
//   - One connection per client, one channel per exchange and per queue
//   - Automatic reconnection; consumers re-declare and resume on the new connection
//   - Optional publisher confirms
//   - Dead letter exchange and lazy queue arguments
//   - Optional observability hooks for metrics (bind, produce, consume)
//   - Optional context-aware logging for lifecycle events
//   - Connection sharing per URI through ConnectionCache and DefaultProvider
//
// # Direct Usage (Without FX)
//
//	client, err := rabbit.NewClient(rabbit.Config{
//		Connection: rabbit.Connection{
//			Host:     "localhost",
//			Port:     5672,
//			User:     "guest",
//			Password: "guest",
//		},
//	})
//	if err != nil {
//		return err
//	}
//	go client.RetryConnection()
//	defer client.GracefulShutdown()
//
//	ex, err := client.Exchange(ctx, "topic", "orders")
//	if err != nil {
//		return err
//	}
//
//	q := ex.Queue(rabbit.QueueOptions{
//		Name:               "orders.created",
//		Key:                "orders.created",
//		Durable:            true,
//		DeadLetterExchange: "orders.dead",
//	})
//	err = q.Consume(ctx, func(msg rabbit.Message) {
//		fmt.Println(string(msg.Body()))
//		_ = msg.AckMsg()
//	})
//
//	err = ex.Publish(ctx, []byte(`{"id":1}`), rabbit.Properties{
//		Key:         "orders.created",
//		ContentType: "application/json",
//	})
//
// # FX Module Integration
//
//	app := fx.New(
//		logger.FXModule,
//		rabbit.FXModule,
//		fx.Provide(func() rabbit.Config { return loadRabbitConfig() }),
//	)
//
// The module starts RetryConnection when the application starts and calls
// GracefulShutdown when it stops.
//
// # Shared Connections
//
// DefaultProvider dials each URI once per process and reuses the client for
// later requests. An empty URI resolves to $RABBIT_URL, then amqp://localhost.
//
// # Error Handling
//
// Failures wrap one of the sentinel errors in errors.go. TranslateError maps
// raw AMQP, network and syscall errors onto the same set:
//
//	if errors.Is(err, rabbit.ErrPreconditionFailed) {
//		// queue or exchange exists with different arguments
//	}
//
// # Thread Safety
//
// All methods on RabbitClient, exchanges and queues are safe for concurrent use.
// A Queue delivers to its callback from a single goroutine, in delivery order.
package rabbit
