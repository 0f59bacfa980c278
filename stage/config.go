package stage

import (
	"github.com/kbukum/stagekit/errors"
	"github.com/kbukum/stagekit/validation"
)

// DefaultMaxConcurrency is used when Config.MaxConcurrency is zero.
const DefaultMaxConcurrency = 16

// Config configures a Stage.
type Config struct {
	// Name identifies the stage in logs, metrics and errors.
	Name string `yaml:"name" mapstructure:"name"`
	// MaxConcurrency is the number of transforms allowed in flight.
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency" validate:"min=1"`
	// PreserveOrder releases outputs in arrival order.
	PreserveOrder bool `yaml:"preserve_order" mapstructure:"preserve_order"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "stage"
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return errors.InvalidConfig("max_concurrency", "max_concurrency must be at least 1").
			WithSegment(c.Name)
	}
	return validation.Validate(c)
}
