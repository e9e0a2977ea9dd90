package minion

import (
	"time"

	"github.com/Aleph-Alpha/minion/v1/rabbit"
)

const (
	DefaultExchangeType = "topic"
	DefaultTimeout      = 30 * time.Second

	// DeadLetterSuffix is appended to the exchange name to derive the dead letter exchange.
	DeadLetterSuffix = ".dead"
)

// Settings is a partial set of options. A nil field is absent and never
// overrides a value from a lower layer. Keys and Arguments are replaced
// wholesale when non-nil.
type Settings struct {
	// Name of the queue; defaults to the handler name.
	Name *string `yaml:"name"`

	// ExchangeName defaults to Name.
	ExchangeName *string `yaml:"exchange_name"`

	// ExchangeType is one of direct, fanout, topic, headers. Default topic.
	ExchangeType *string `yaml:"exchange_type"`

	// Key is the binding and default publishing key; defaults to Name.
	Key *string `yaml:"key"`

	// Keys are additional binding keys.
	Keys []string `yaml:"keys"`

	// DeadLetterExchange defaults to ExchangeName + ".dead". An explicit empty
	// string (NoDeadLetter) disables dead lettering.
	DeadLetterExchange *string `yaml:"dead_letter_exchange"`

	Exclusive  *bool `yaml:"exclusive"`
	Durable    *bool `yaml:"durable"`
	AutoDelete *bool `yaml:"auto_delete"`

	// AutoStart makes the constructor start the service in the background. Default true.
	AutoStart *bool `yaml:"auto_start"`

	// Requeue is the nack decision for failures without a requeue hint. Default false.
	Requeue *bool `yaml:"requeue"`

	// Debug logs every dispatch at debug level.
	Debug *bool `yaml:"debug"`

	// Prefetch limits unacknowledged deliveries. 0 means unlimited.
	Prefetch *int `yaml:"prefetch"`

	// QueueMode is "default" or "lazy".
	QueueMode *string `yaml:"queue_mode"`

	// Timeout bounds each handler invocation. Default 30s.
	Timeout *time.Duration `yaml:"timeout"`

	// RabbitURL selects the connection when neither Exchange nor Rabbit is
	// injected. Defaults to $RABBIT_URL, then amqp://localhost.
	RabbitURL *string `yaml:"rabbit_url"`

	// Arguments are extra queue declaration arguments.
	Arguments map[string]interface{} `yaml:"arguments"`

	// Exchange is reused as is; no exchange is declared.
	Exchange rabbit.Exchange `yaml:"-"`

	// Rabbit is used instead of a provider-supplied connection.
	Rabbit rabbit.Conn `yaml:"-"`

	// Logger receives service logs and backs the per-message context logger.
	Logger Logger `yaml:"-"`
}

// Options is the resolved, immutable configuration of a service or publisher.
type Options struct {
	Name               string
	ExchangeName       string
	ExchangeType       string
	Key                string
	Keys               []string
	DeadLetterExchange string
	Exclusive          bool
	Durable            bool
	AutoDelete         bool
	AutoStart          bool
	Requeue            bool
	Debug              bool
	Prefetch           int
	QueueMode          string
	Timeout            time.Duration
	RabbitURL          string
	Arguments          map[string]interface{}

	Exchange rabbit.Exchange
	Rabbit   rabbit.Conn
	Logger   Logger
}

// Settings returns o with every field set. Resolving it again yields o.
func (o Options) Settings() Settings {
	return Settings{
		Name:               String(o.Name),
		ExchangeName:       String(o.ExchangeName),
		ExchangeType:       String(o.ExchangeType),
		Key:                String(o.Key),
		Keys:               cloneKeys(o.Keys),
		DeadLetterExchange: String(o.DeadLetterExchange),
		Exclusive:          Bool(o.Exclusive),
		Durable:            Bool(o.Durable),
		AutoDelete:         Bool(o.AutoDelete),
		AutoStart:          Bool(o.AutoStart),
		Requeue:            Bool(o.Requeue),
		Debug:              Bool(o.Debug),
		Prefetch:           Int(o.Prefetch),
		QueueMode:          String(o.QueueMode),
		Timeout:            Duration(o.Timeout),
		RabbitURL:          String(o.RabbitURL),
		Arguments:          cloneArguments(o.Arguments),
		Exchange:           o.Exchange,
		Rabbit:             o.Rabbit,
		Logger:             o.Logger,
	}
}

// queueOptions is the topology subset passed to the broker.
func (o Options) queueOptions() rabbit.QueueOptions {
	return rabbit.QueueOptions{
		Name:               o.Name,
		Key:                o.Key,
		Keys:               cloneKeys(o.Keys),
		Exclusive:          o.Exclusive,
		Durable:            o.Durable,
		AutoDelete:         o.AutoDelete,
		DeadLetterExchange: o.DeadLetterExchange,
		Prefetch:           o.Prefetch,
		QueueMode:          o.QueueMode,
		Arguments:          cloneArguments(o.Arguments),
	}
}

func String(v string) *string                 { return &v }
func Bool(v bool) *bool                       { return &v }
func Int(v int) *int                          { return &v }
func Duration(v time.Duration) *time.Duration { return &v }

// NoDeadLetter disables the derived dead letter exchange.
func NoDeadLetter() *string { return String("") }

func cloneKeys(keys []string) []string {
	if keys == nil {
		return nil
	}
	return append([]string{}, keys...)
}

func cloneArguments(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
