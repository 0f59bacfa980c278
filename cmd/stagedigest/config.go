package main

import (
	"encoding/hex"
	"fmt"

	"github.com/kbukum/stagekit/config"
	"github.com/kbukum/stagekit/logger"
	"github.com/kbukum/stagekit/observability"
	"github.com/kbukum/stagekit/stage"
	"github.com/kbukum/stagekit/stream"
	"github.com/kbukum/stagekit/validation"
)

// AppConfig is the full stagedigest configuration.
type AppConfig struct {
	config.BaseConfig `yaml:",inline" mapstructure:",squash"`

	Logging   logger.Config        `yaml:"logging" mapstructure:"logging"`
	Stage     stage.Config         `yaml:"stage" mapstructure:"stage"`
	Stream    stream.Config        `yaml:"stream" mapstructure:"stream"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
	Digest    DigestConfig         `yaml:"digest" mapstructure:"digest"`
}

// DigestConfig selects the BLAKE2b variant.
type DigestConfig struct {
	// Size is the digest length in bytes.
	Size int `yaml:"size" mapstructure:"size" validate:"min=1,max=64"`
	// Key, hex encoded, turns the digest into a MAC.
	Key string `yaml:"key" mapstructure:"key" validate:"omitempty,hexadecimal,max=128"`
	// Manifest appends a digest over every file digest.
	Manifest bool `yaml:"manifest" mapstructure:"manifest"`
}

// KeyBytes decodes Key.
func (c DigestConfig) KeyBytes() ([]byte, error) {
	if c.Key == "" {
		return nil, nil
	}
	return hex.DecodeString(c.Key)
}

// ApplyDefaults fills zero values in every section.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "stagedigest"
	}
	c.BaseConfig.ApplyDefaults()
	c.Logging.ApplyDefaults()
	if c.Stage.Name == "" {
		c.Stage.Name = "digest"
	}
	c.Stage.ApplyDefaults()
	c.Stream.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	if c.Digest.Size == 0 {
		c.Digest.Size = 32
	}
}

// Validate checks every section.
func (c *AppConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Stage.Validate(); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return validation.Validate(c.Digest)
}
