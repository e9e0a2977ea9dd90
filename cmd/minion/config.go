package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Aleph-Alpha/minion/v1/logger"
	"github.com/Aleph-Alpha/minion/v1/metrics"
	"github.com/Aleph-Alpha/minion/v1/minion"
	"github.com/Aleph-Alpha/minion/v1/rabbit"
	"github.com/Aleph-Alpha/minion/v1/tracer"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "MINION_"

// Config is the configuration of the command, read from the yaml tags of the
// library configs.
type Config struct {
	Logger  logger.Config   `yaml:"logger"`
	Metrics metrics.Config  `yaml:"metrics"`
	Tracer  tracer.Config   `yaml:"tracer"`
	Rabbit  rabbit.Config   `yaml:"rabbit"`
	Minion  minion.Settings `yaml:"minion"`
}

// Load layers the configuration: defaults, the YAML file at path (skipped when
// path is empty), MINION_ environment variables and finally overrides, keyed
// by dotted path. Nested env keys use "__", e.g. MINION_RABBIT__CONNECTION__URL.
func Load(path string, overrides map[string]interface{}) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(defaults(), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
		return Config{}, fmt.Errorf("flag overlay: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	cfg.Minion.DeadLetterExchange = deadLetterExchange(k.Get("minion.dead_letter_exchange"), cfg.Minion.DeadLetterExchange)

	if cfg.Rabbit.Connection.URL == "" && cfg.Rabbit.Connection.Host == "" {
		cfg.Rabbit.Connection.URL = rabbit.DefaultAddress()
	}
	return cfg, cfg.Validate()
}

// defaults are the values every run starts from.
func defaults() koanf.Provider {
	return confmap.Provider(map[string]interface{}{
		"logger.level":        logger.Info,
		"logger.service_name": "minion",
		"metrics.address":     metrics.DefaultMetricsAddress,
		"metrics.namespace":   "minion",
		"tracer.service_name": "minion",
	}, ".")
}

// deadLetterExchange reads boolean values of minion.dead_letter_exchange:
// false disables dead lettering, true keeps the derived default. Weak
// decoding would otherwise bind an exchange named "0" or "1".
func deadLetterExchange(raw interface{}, decoded *string) *string {
	switch v := raw.(type) {
	case bool:
		if v {
			return nil
		}
		return minion.NoDeadLetter()
	case string:
		switch strings.ToLower(v) {
		case "false", "0":
			return minion.NoDeadLetter()
		case "true":
			return nil
		}
	}
	return decoded
}

// Validate reports configuration the command cannot run with.
func (c Config) Validate() error {
	if c.Minion.Timeout != nil && *c.Minion.Timeout <= 0 {
		return errors.New("minion.timeout must be positive")
	}
	if c.Minion.Prefetch != nil && *c.Minion.Prefetch < 0 {
		return errors.New("minion.prefetch must not be negative")
	}
	return nil
}

// configPath is the -config flag value, falling back to $MINION_CONFIG.
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("MINION_CONFIG")
}
