// Command minion publishes messages to, and consumes messages from, RabbitMQ
// exchanges using the minion library.
//
//	minion publish [-x exchange] [-t type] [-k key] [--expiration ms] <message>
//	minion consume -n queue [-x exchange] [-t type] [-k key] [--prefetch n]
//
// Configuration is read from the YAML file given by --config or
// $MINION_CONFIG, then from MINION_ environment variables, then from flags.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Aleph-Alpha/minion/v1/logger"
	"github.com/Aleph-Alpha/minion/v1/metrics"
	"github.com/Aleph-Alpha/minion/v1/minion"
	"github.com/Aleph-Alpha/minion/v1/rabbit"
	"github.com/Aleph-Alpha/minion/v1/tracer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// flagKeys maps flag names to the config keys they override.
var flagKeys = map[string]string{
	"url":         "rabbit.connection.url",
	"exchange":    "minion.exchange_name",
	"type":        "minion.exchange_type",
	"key":         "minion.key",
	"name":        "minion.name",
	"prefetch":    "minion.prefetch",
	"timeout":     "minion.timeout",
	"requeue":     "minion.requeue",
	"debug":       "minion.debug",
	"dead-letter": "minion.dead_letter_exchange",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "minion",
		Short:        "Publish to and consume from RabbitMQ exchanges",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML config file (default $MINION_CONFIG)")
	rootCmd.PersistentFlags().StringP("url", "u", "", "AMQP URI (default $RABBIT_URL, then amqp://localhost)")
	rootCmd.PersistentFlags().StringP("exchange", "x", "", "exchange name")
	rootCmd.PersistentFlags().StringP("type", "t", "", "exchange type: direct, fanout, topic or headers")
	rootCmd.PersistentFlags().StringP("key", "k", "", "routing key")

	rootCmd.AddCommand(newPublishCmd(), newConsumeCmd())
	return rootCmd
}

func newPublishCmd() *cobra.Command {
	var expiration string

	cmd := &cobra.Command{
		Use:   "publish <message>",
		Short: "Publish one message; valid JSON is sent as is, anything else as a JSON string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadFromFlags(cmd)
			if err != nil {
				return err
			}
			return publish(cmd.Context(), cfg, args[0], minion.Properties{Expiration: expiration})
		},
	}
	cmd.Flags().StringVar(&expiration, "expiration", "", "per-message TTL in milliseconds")
	return cmd
}

func newConsumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume a queue, logging every message, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadFromFlags(cmd)
			if err != nil {
				return err
			}
			if cfg.Minion.Name == nil || *cfg.Minion.Name == "" {
				return errors.New("consume needs a queue name (-n)")
			}
			return runConsumer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringP("name", "n", "", "queue name")
	cmd.Flags().Int("prefetch", 0, "unacknowledged message limit, 0 for none")
	cmd.Flags().Duration("timeout", 0, "handler deadline (default 30s)")
	cmd.Flags().Bool("requeue", false, "requeue failed messages")
	cmd.Flags().Bool("debug", false, "log every dispatch")
	cmd.Flags().String("dead-letter", "", `dead letter exchange, "false" to disable`)
	return cmd
}

// loadFromFlags loads the configuration with the flags set on cmd as the
// highest layer.
func loadFromFlags(cmd *cobra.Command) (Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return Config{}, err
	}
	return Load(configPath(path), flagOverrides(cmd.Flags()))
}

// flagOverrides collects the flags set on the command line, keyed by config key.
func flagOverrides(flags *pflag.FlagSet) map[string]interface{} {
	out := map[string]interface{}{}
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			out[key] = f.Value.String()
		}
	})
	return out
}

func publish(ctx context.Context, cfg Config, arg string, props minion.Properties) error {
	var registry *minion.Registry
	app := fx.New(append(baseOptions(cfg), fx.Populate(&registry))...)
	if err := start(ctx, app); err != nil {
		return err
	}
	defer stopApp(app)

	publisher, err := registry.NewPublisher(cfg.Minion)
	if err != nil {
		return err
	}
	return publisher(ctx, messageArg(arg), "", props)
}

func runConsumer(ctx context.Context, cfg Config) error {
	opts := append(baseOptions(cfg),
		fx.Supply(cfg.Metrics),
		metrics.FXModule,
		fx.Invoke(func(lc fx.Lifecycle, r *minion.Registry) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return consume(ctx, r, cfg.Minion)
				},
			})
		}),
	)
	app := fx.New(opts...)
	if err := start(ctx, app); err != nil {
		return err
	}

	<-ctx.Done()
	return stopApp(app)
}

// consume starts a service that logs every message and returns it as the
// response.
func consume(ctx context.Context, r *minion.Registry, settings minion.Settings) error {
	handler := minion.Handler{
		Name: *settings.Name,
		Fn: func(ctx context.Context, message any, meta minion.Metadata) (any, error) {
			return message, nil
		},
	}

	settings.AutoStart = minion.Bool(false)
	svc, err := r.NewService(handler, settings, minion.WithSubscriptions(func(s *minion.Service) {
		_, _ = minion.AddDefaultLoggingEventHandlers(s, minion.LoggingOptions{
			MessageKey:  "message",
			ResponseKey: "response",
		})
	}))
	if err != nil {
		return err
	}
	return svc.Start(ctx)
}

// baseOptions wires logging, tracing, the rabbit connection and the minion
// registry.
func baseOptions(cfg Config) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg.Logger, cfg.Tracer, cfg.Rabbit),
		logger.FXModule,
		tracer.FXModule,
		rabbit.FXModule,
		minion.FXModule,
		fx.Provide(func(l logger.Logger) rabbit.Logger { return l }),
		fx.WithLogger(func(l *logger.LoggerClient) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Zap}
		}),
	}
}

func start(ctx context.Context, app *fx.App) error {
	if err := app.Err(); err != nil {
		return err
	}
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	return app.Start(startCtx)
}

func stopApp(app *fx.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancel()
	return app.Stop(ctx)
}

// messageArg publishes valid JSON as is and anything else as a JSON string.
func messageArg(arg string) any {
	if json.Valid([]byte(arg)) {
		return json.RawMessage(arg)
	}
	return arg
}
