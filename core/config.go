package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultListLimit        int64 = 100
	DefaultPipelineSchedule       = "0 0 4 * * *"
	DefaultPipelineTimeout        = "30s"
)

type ListingConfig struct {
	DefaultLimit int64 `koanf:"default_limit" mapstructure:"default_limit"`
	MaxLimit     int64 `koanf:"max_limit" mapstructure:"max_limit"`
}

type PipelineUnitConfig struct {
	ID      string `koanf:"id" mapstructure:"id"`
	BaseURL string `koanf:"base_url" mapstructure:"base_url"`
	Version int64  `koanf:"version" mapstructure:"version"`
}

type PipelineConfig struct {
	Concurrency    int                  `koanf:"concurrency" mapstructure:"concurrency"`
	Schedule       string               `koanf:"schedule" mapstructure:"schedule"`
	RequestTimeout string               `koanf:"request_timeout" mapstructure:"request_timeout"`
	Units          []PipelineUnitConfig `koanf:"units" mapstructure:"units"`
}

// Timeout parses RequestTimeout, falling back to the default on empty input.
func (c PipelineConfig) Timeout() time.Duration {
	raw := strings.TrimSpace(c.RequestTimeout)
	if raw == "" {
		raw = DefaultPipelineTimeout
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		parsed, _ = time.ParseDuration(DefaultPipelineTimeout)
	}
	return parsed
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Listing     ListingConfig  `koanf:"listing" mapstructure:"listing"`
	Pipeline    PipelineConfig `koanf:"pipeline" mapstructure:"pipeline"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "healthdata",
		Listing: ListingConfig{
			DefaultLimit: DefaultListLimit,
			MaxLimit:     DefaultListLimit,
		},
		Pipeline: PipelineConfig{
			Concurrency:    1,
			Schedule:       DefaultPipelineSchedule,
			RequestTimeout: DefaultPipelineTimeout,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Listing.MaxLimit <= 0 {
		return fmt.Errorf("core: listing.max_limit must be positive")
	}
	if c.Listing.DefaultLimit <= 0 || c.Listing.DefaultLimit > c.Listing.MaxLimit {
		return fmt.Errorf("core: listing.default_limit must be between 1 and %d", c.Listing.MaxLimit)
	}
	if c.Pipeline.Concurrency < 0 {
		return fmt.Errorf("core: pipeline.concurrency must be >= 0")
	}
	if raw := strings.TrimSpace(c.Pipeline.RequestTimeout); raw != "" {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("core: pipeline.request_timeout is invalid: %w", err)
		}
	}
	for index, unit := range c.Pipeline.Units {
		if strings.TrimSpace(unit.ID) == "" {
			return fmt.Errorf("core: pipeline.units[%d].id is required", index)
		}
		if strings.TrimSpace(unit.BaseURL) == "" {
			return fmt.Errorf("core: pipeline.units[%d].base_url is required", index)
		}
		if unit.Version <= 0 {
			return fmt.Errorf("core: pipeline.units[%d].version must be positive", index)
		}
	}
	return nil
}
