// Package observability defines the hook contract components use to report
// the operations they perform (publishing, consuming, handling) to metrics,
// tracing or any other collector without depending on it directly.
package observability

import "time"

// Observer receives a notification for every operation a component performs.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	ObserveOperation(ctx OperationContext)
}

// OperationContext describes a single completed operation.
type OperationContext struct {
	// Component is the reporting package, e.g. "rabbit" or "minion".
	Component string

	// Operation is the action performed, e.g. "produce", "consume" or "handle".
	Operation string

	// Resource is the primary target of the operation (exchange or queue name).
	Resource string

	// SubResource narrows the resource (routing key).
	SubResource string

	// Duration is the wall time the operation took.
	Duration time.Duration

	// Error is the failure, if any.
	Error error

	// Size is the payload size in bytes.
	Size int64

	// Metadata carries component specific attributes.
	Metadata map[string]string
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(ctx OperationContext)

// ObserveOperation calls f(ctx).
func (f ObserverFunc) ObserveOperation(ctx OperationContext) {
	f(ctx)
}
