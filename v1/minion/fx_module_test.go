package minion

import (
	"context"
	"testing"

	"github.com/Aleph-Alpha/minion/v1/logger"
	"github.com/Aleph-Alpha/minion/v1/rabbit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegistryUsesInjectedConnection(t *testing.T) {
	broker := newMemoryBroker()
	conn := broker.conn()

	var registry *Registry
	app := fxtest.New(t,
		fx.Provide(func() rabbit.Conn { return conn }),
		FXModule,
		fx.Populate(&registry),
	)
	app.RequireStart()

	responses := make(chan any, 1)
	svc, err := registry.NewService(Handler{Name: "jobs", Fn: echo}, Settings{AutoStart: Bool(false)},
		WithSubscriptions(func(s *Service) {
			s.OnResponse(func(ctx context.Context, response any) { responses <- response })
		}))
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, rabbit.Conn(conn), svc.Connection())

	publish, err := registry.NewPublisher(Settings{ExchangeName: String(svc.Options().ExchangeName)})
	require.NoError(t, err)
	require.NoError(t, publish(context.Background(), "ping", "jobs"))
	assert.Equal(t, "ping", waitFor(t, responses))

	assert.Len(t, registry.Services(), 1)

	app.RequireStop()
	assert.False(t, svc.running())
}

func TestRegistryInjectsLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	client := logger.NewFromZap(zap.New(core), false)
	registry := NewRegistry(RegistryParams{Logger: client, Conn: newMemoryBroker().conn()})

	svc, err := registry.NewService(Handler{Name: "jobs", Fn: echo}, Settings{AutoStart: Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, Logger(client), svc.Options().Logger)

	require.NoError(t, svc.Start(context.Background()))
	entries := logs.FilterMessage("Minion is ready").All()
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]interface{}{"name": "jobs"}, entries[0].ContextMap()["minion"])

	own := NewMockLogger(gomock.NewController(t))
	svc, err = registry.NewService(Handler{Name: "other", Fn: echo}, Settings{AutoStart: Bool(false), Logger: own})
	require.NoError(t, err)
	assert.Equal(t, Logger(own), svc.Options().Logger)
}
