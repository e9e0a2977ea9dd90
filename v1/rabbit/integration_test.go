package rabbit

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
)

// TestRabbitPublishConsume verifies an exchange, a bound queue and a consumer
// against a real broker.
func TestRabbitPublishConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	uri, containerInstance := initializeRabbit(ctx, t)
	defer func() {
		if err := containerInstance.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	observer := &TestObserver{}
	var client *RabbitClient

	app := fx.New(
		FXModule,
		fx.Provide(
			func() Config {
				return Config{
					Connection: Connection{URL: uri},
					Channel:    Channel{ConfirmPublish: true},
				}
			},
		),
		fx.Decorate(func(c *RabbitClient) *RabbitClient { return c.WithObserver(observer) }),
		fx.Populate(&client),
	)

	require.NoError(t, app.Start(ctx))
	defer app.Stop(ctx)

	ex, err := client.Exchange(ctx, "topic", "minion-it")
	require.NoError(t, err)
	assert.Same(t, client, ex.Conn())

	t.Run("Publish and consume", func(t *testing.T) {
		q := ex.Queue(QueueOptions{
			Name:               "minion-it.orders",
			Key:                "orders.created",
			Keys:               []string{"orders.updated"},
			Durable:            true,
			DeadLetterExchange: "minion-it.dead",
			Prefetch:           5,
		})
		require.NoError(t, q.Bind(ctx))
		assert.Equal(t, "minion-it.orders", q.Name())

		received := make(chan Message, 2)
		require.NoError(t, q.Consume(ctx, func(m Message) { received <- m }))
		defer q.Cancel()

		require.NoError(t, ex.Publish(ctx, []byte(`{"id":1}`), Properties{
			Key:         "orders.created",
			ContentType: "application/json",
			MessageID:   "m-1",
			Headers:     map[string]interface{}{"eventId": "e-1"},
		}))
		require.NoError(t, ex.Publish(ctx, []byte("raw"), Properties{Key: "orders.updated"}))

		first := waitMessage(t, received)
		assert.Equal(t, `{"id":1}`, string(first.Body()))
		meta := first.Metadata()
		assert.Equal(t, "minion-it", meta.Exchange)
		assert.Equal(t, "orders.created", meta.RoutingKey)
		assert.Equal(t, "m-1", meta.MessageID)
		assert.Equal(t, "application/json", meta.ContentType)
		assert.Equal(t, "e-1", first.Header()["eventId"])
		assert.True(t, strings.HasPrefix(meta.ConsumerTag, "minion."))
		require.NoError(t, first.AckMsg())

		second := waitMessage(t, received)
		assert.Equal(t, "orders.updated", second.Metadata().RoutingKey)
		require.NoError(t, second.AckMsg())

		var produced, consumed int
		for _, op := range observer.GetOperations() {
			switch op.Operation {
			case "produce":
				produced++
			case "consume":
				consumed++
			}
		}
		assert.Equal(t, 2, produced)
		assert.Equal(t, 2, consumed)
	})

	t.Run("Nack with requeue redelivers", func(t *testing.T) {
		q := ex.Queue(QueueOptions{Name: "minion-it.requeue", Key: "requeue", AutoDelete: true})
		received := make(chan Message, 2)
		require.NoError(t, q.Consume(ctx, func(m Message) { received <- m }))
		defer q.Cancel()

		require.NoError(t, ex.Publish(ctx, []byte("again"), Properties{Key: "requeue"}))

		first := waitMessage(t, received)
		assert.False(t, first.Metadata().Redelivered)
		require.NoError(t, first.NackMsg(true))

		second := waitMessage(t, received)
		assert.True(t, second.Metadata().Redelivered)
		require.NoError(t, second.AckMsg())
	})

	t.Run("Server named exclusive queue", func(t *testing.T) {
		q := ex.Queue(QueueOptions{Key: "anon", Exclusive: true, AutoDelete: true})
		require.NoError(t, q.Bind(ctx))
		assert.NotEmpty(t, q.Name())
	})

	t.Run("Redeclare with different type fails", func(t *testing.T) {
		_, err := client.Exchange(ctx, "fanout", "minion-it")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDeclareFailed)
		assert.ErrorIs(t, err, ErrPreconditionFailed)
	})
}

func waitMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func initializeRabbit(ctx context.Context, t *testing.T) (string, testcontainers.Container) {
	hostPort, err := getFreePort()
	require.NoError(t, err)

	containerInstance, err := createRabbitContainer(ctx, hostPort)
	require.NoError(t, err)

	port, err := containerInstance.MappedPort(ctx, "5672")
	require.NoError(t, err)

	host, err := containerInstance.Host(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port.Port()), 2*time.Second)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 60*time.Second, 500*time.Millisecond, "RabbitMQ port not ready")

	return fmt.Sprintf("amqp://guest:guest@%s", net.JoinHostPort(host, port.Port())), containerInstance
}

func createRabbitContainer(ctx context.Context, hostPort string) (testcontainers.Container, error) {
	portBindings := nat.PortMap{
		"5672/tcp": []nat.PortBinding{{HostPort: hostPort}},
	}

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		HostConfigModifier: func(cfg *container.HostConfig) {
			cfg.PortBindings = portBindings
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5672/tcp").WithStartupTimeout(60*time.Second),
			wait.ForLog("Server startup complete").WithStartupTimeout(60*time.Second),
		),
	}

	var containerInstance testcontainers.Container
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		containerInstance, lastErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if lastErr == nil {
			return containerInstance, nil
		}

		if strings.Contains(lastErr.Error(), "docker.sock") {
			time.Sleep(time.Duration(attempt+1) * time.Second)
			continue
		}

		break
	}

	return nil, fmt.Errorf("failed to start RabbitMQ container after 3 attempts: %w", lastErr)
}

func getFreePort() (string, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return "", err
	}
	defer l.Close()
	addr := l.Addr().(*net.TCPAddr)
	return strconv.Itoa(addr.Port), nil
}
