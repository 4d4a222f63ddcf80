package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fieldcast/core/factory"
	"github.com/kilianp07/fieldcast/core/metrics"
	"github.com/kilianp07/fieldcast/core/predict"
	"github.com/kilianp07/fieldcast/core/processor"
	infralogger "github.com/kilianp07/fieldcast/infra/logger"
)

type Config struct {
	// Processor is optional; without it target locations must be normalised.
	Processor *processor.Config      `json:"processor"`
	Schema    SchemaConfig           `json:"schema"`
	Model     factory.ModuleConfig   `json:"model"`
	Predict   predict.Options        `json:"predict"`
	Sinks     []factory.ModuleConfig `json:"sinks"`
	Metrics   metrics.Config         `json:"metrics"`
	Logging   infralogger.Config     `json:"logging"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Config{Predict: predict.DefaultOptions()}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	if c.Processor != nil {
		c.Processor.SetDefaults()
	}
	if c.Model.Type == "" {
		c.Model.Type = "gp"
	}
	c.Predict.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Processor != nil {
		if err := c.Processor.Validate(); err != nil {
			return fmt.Errorf("processor: %w", err)
		}
	}
	if err := c.Schema.Validate(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if c.Predict.NSamples < 0 {
		return fmt.Errorf("predict: n_samples must not be negative")
	}
	if c.Predict.ARSample && c.Predict.NSamples < 1 {
		return fmt.Errorf("predict: ar_sample needs n_samples >= 1")
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}
