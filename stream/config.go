package stream

import "github.com/kbukum/stagekit/validation"

// Config sizes the buffers around a stage.
type Config struct {
	// InputBuffer is how many written items may wait for admission before
	// Write blocks.
	InputBuffer int `yaml:"input_buffer" mapstructure:"input_buffer" validate:"min=1"`
	// OutputBuffer is the number of outputs held for the consumer before
	// the stage is told downstream is not ready.
	OutputBuffer int `yaml:"output_buffer" mapstructure:"output_buffer" validate:"min=1"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.InputBuffer == 0 {
		c.InputBuffer = 64
	}
	if c.OutputBuffer == 0 {
		c.OutputBuffer = 16
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
