package minion

import (
	"github.com/Aleph-Alpha/minion/v1/rabbit"
)

var exchangeTypes = map[string]struct{}{
	"direct":  {},
	"fanout":  {},
	"topic":   {},
	"headers": {},
}

var queueModes = map[string]struct{}{
	"":        {},
	"default": {},
	"lazy":    {},
}

func defaultSettings() Settings {
	return Settings{
		ExchangeType: String(DefaultExchangeType),
		Exclusive:    Bool(false),
		Durable:      Bool(true),
		AutoDelete:   Bool(false),
		AutoStart:    Bool(true),
		Requeue:      Bool(false),
		Debug:        Bool(false),
		Prefetch:     Int(0),
		QueueMode:    String(""),
		Timeout:      Duration(DefaultTimeout),
	}
}

// Resolve merges the built-in defaults, the target's declared settings and
// override, in that order, then derives the remaining defaults:
//
//	Name               <- handler name
//	ExchangeName       <- injected Exchange's name, else Name
//	Key                <- Name
//	DeadLetterExchange <- ExchangeName + ".dead"
//
// Resolving Options.Settings() of a result again returns the same Options.
func Resolve(target Target, override Settings) (Options, error) {
	var (
		declared    Settings
		handlerName string
		service     bool
	)

	switch t := target.(type) {
	case Handler:
		if t.Fn == nil {
			return Options{}, configError("handler %q has no function", t.Name)
		}
		declared, handlerName, service = t.Settings, t.Name, true
	case PublisherConfig:
		declared = t.Settings
	default:
		return Options{}, configError("unsupported target %T", target)
	}

	merged := defaultSettings().merge(declared).merge(override)
	opts := merged.options()

	if merged.Name == nil {
		opts.Name = handlerName
	}
	if merged.ExchangeName == nil {
		if opts.Exchange != nil {
			opts.ExchangeName = opts.Exchange.Name()
		} else {
			opts.ExchangeName = opts.Name
		}
	}
	if opts.Exchange != nil && declared.ExchangeType == nil && override.ExchangeType == nil {
		opts.ExchangeType = opts.Exchange.Kind()
	}
	if merged.Key == nil {
		opts.Key = opts.Name
	}
	if merged.DeadLetterExchange == nil && opts.ExchangeName != "" {
		opts.DeadLetterExchange = opts.ExchangeName + DeadLetterSuffix
	}
	if merged.RabbitURL == nil {
		opts.RabbitURL = rabbit.DefaultAddress()
	}

	if err := opts.validate(service); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (o Options) validate(service bool) error {
	if service && o.Name == "" {
		return configError("a service needs a name")
	}
	if o.ExchangeName == "" && o.Exchange == nil {
		return configError("no exchange name and no exchange given")
	}
	if _, ok := exchangeTypes[o.ExchangeType]; !ok {
		return configError("unknown exchange type %q", o.ExchangeType)
	}
	if o.Timeout <= 0 {
		return configError("timeout must be positive, got %s", o.Timeout)
	}
	if o.Prefetch < 0 {
		return configError("prefetch must not be negative, got %d", o.Prefetch)
	}
	if _, ok := queueModes[o.QueueMode]; !ok {
		return configError("unknown queue mode %q", o.QueueMode)
	}
	return nil
}

// merge returns s with every field set in higher replacing its value.
func (s Settings) merge(higher Settings) Settings {
	if higher.Name != nil {
		s.Name = higher.Name
	}
	if higher.ExchangeName != nil {
		s.ExchangeName = higher.ExchangeName
	}
	if higher.ExchangeType != nil {
		s.ExchangeType = higher.ExchangeType
	}
	if higher.Key != nil {
		s.Key = higher.Key
	}
	if higher.Keys != nil {
		s.Keys = higher.Keys
	}
	if higher.DeadLetterExchange != nil {
		s.DeadLetterExchange = higher.DeadLetterExchange
	}
	if higher.Exclusive != nil {
		s.Exclusive = higher.Exclusive
	}
	if higher.Durable != nil {
		s.Durable = higher.Durable
	}
	if higher.AutoDelete != nil {
		s.AutoDelete = higher.AutoDelete
	}
	if higher.AutoStart != nil {
		s.AutoStart = higher.AutoStart
	}
	if higher.Requeue != nil {
		s.Requeue = higher.Requeue
	}
	if higher.Debug != nil {
		s.Debug = higher.Debug
	}
	if higher.Prefetch != nil {
		s.Prefetch = higher.Prefetch
	}
	if higher.QueueMode != nil {
		s.QueueMode = higher.QueueMode
	}
	if higher.Timeout != nil {
		s.Timeout = higher.Timeout
	}
	if higher.RabbitURL != nil {
		s.RabbitURL = higher.RabbitURL
	}
	if higher.Arguments != nil {
		s.Arguments = higher.Arguments
	}
	if higher.Exchange != nil {
		s.Exchange = higher.Exchange
	}
	if higher.Rabbit != nil {
		s.Rabbit = higher.Rabbit
	}
	if higher.Logger != nil {
		s.Logger = higher.Logger
	}
	return s
}

// options copies the set fields of s; absent fields stay zero.
func (s Settings) options() Options {
	var o Options
	if s.Name != nil {
		o.Name = *s.Name
	}
	if s.ExchangeName != nil {
		o.ExchangeName = *s.ExchangeName
	}
	if s.ExchangeType != nil {
		o.ExchangeType = *s.ExchangeType
	}
	if s.Key != nil {
		o.Key = *s.Key
	}
	if s.DeadLetterExchange != nil {
		o.DeadLetterExchange = *s.DeadLetterExchange
	}
	if s.Exclusive != nil {
		o.Exclusive = *s.Exclusive
	}
	if s.Durable != nil {
		o.Durable = *s.Durable
	}
	if s.AutoDelete != nil {
		o.AutoDelete = *s.AutoDelete
	}
	if s.AutoStart != nil {
		o.AutoStart = *s.AutoStart
	}
	if s.Requeue != nil {
		o.Requeue = *s.Requeue
	}
	if s.Debug != nil {
		o.Debug = *s.Debug
	}
	if s.Prefetch != nil {
		o.Prefetch = *s.Prefetch
	}
	if s.QueueMode != nil {
		o.QueueMode = *s.QueueMode
	}
	if s.Timeout != nil {
		o.Timeout = *s.Timeout
	}
	if s.RabbitURL != nil {
		o.RabbitURL = *s.RabbitURL
	}
	o.Keys = cloneKeys(s.Keys)
	o.Arguments = cloneArguments(s.Arguments)
	o.Exchange = s.Exchange
	o.Rabbit = s.Rabbit
	o.Logger = s.Logger
	return o
}
