package rabbit

import (
	"sync"
	"testing"
	"time"

	"github.com/Aleph-Alpha/minion/v1/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestObserver is a mock observer for testing
type TestObserver struct {
	mu         sync.Mutex
	operations []observability.OperationContext
}

func (t *TestObserver) ObserveOperation(ctx observability.OperationContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.operations = append(t.operations, ctx)
}

func (t *TestObserver) GetOperations() []observability.OperationContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]observability.OperationContext{}, t.operations...)
}

func TestObserverHelperMethod(t *testing.T) {
	testObserver := &TestObserver{}
	client := (&RabbitClient{}).WithObserver(testObserver)

	client.observeOperation("produce", "orders", "orders.created", 100*time.Millisecond, nil, 1024)

	ops := testObserver.GetOperations()
	require.Len(t, ops, 1)

	op := ops[0]
	assert.Equal(t, "rabbit", op.Component)
	assert.Equal(t, "produce", op.Operation)
	assert.Equal(t, "orders", op.Resource)
	assert.Equal(t, "orders.created", op.SubResource)
	assert.Equal(t, 100*time.Millisecond, op.Duration)
	assert.Equal(t, int64(1024), op.Size)
	assert.NoError(t, op.Error)
}

func TestObserverRecordsError(t *testing.T) {
	testObserver := &TestObserver{}
	client := (&RabbitClient{}).WithObserver(testObserver)

	client.observeOperation("produce", "orders", "", time.Millisecond, ErrPublishFailed, 3)

	ops := testObserver.GetOperations()
	require.Len(t, ops, 1)
	assert.ErrorIs(t, ops[0].Error, ErrPublishFailed)
}

func TestObserverNilObserver(t *testing.T) {
	client := &RabbitClient{}

	assert.NotPanics(t, func() {
		client.observeOperation("consume", "orders", "", 0, nil, 10)
	})
}
