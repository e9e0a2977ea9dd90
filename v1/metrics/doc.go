// Package metrics provides Prometheus-based monitoring for minion workers.
//
// # Architecture
//
// This package follows the "accept interfaces, return structs" design pattern:
//   - MetricsCollector interface: Defines the contract for metrics operations
//   - Metrics struct: Concrete implementation of the MetricsCollector interface
//   - NewMetrics constructor: Returns *Metrics (concrete type)
//   - FX module: Provides *Metrics, MetricsCollector and observability.Observer
//
// *Metrics implements observability.Observer, so the same instance can be
// attached to the rabbit client and to minion services; every publish, consume
// and handle operation then lands in operations_total and
// operation_duration_seconds, labelled by component, operation and resource.
//
//	m := metrics.NewMetrics(metrics.Config{
//		Address:                 ":9090",
//		EnableDefaultCollectors: true,
//		ServiceName:             "billing-worker",
//	})
//	go m.Server.ListenAndServe()
//
//	svc, err := minion.NewService(handler, minion.Settings{}, minion.WithObserver(m))
//
// # Configuration
//
//	METRICS_ADDRESS=:9090
//	METRICS_ENABLE_DEFAULT_COLLECTORS=true
//	METRICS_NAMESPACE=minion
//	METRICS_SERVICE_NAME=billing-worker
package metrics
