package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the gpuflow daemon
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"GPUFLOW_METRICS_ADDR" envDefault:":9100"`

	// Engine configuration
	Engine EngineConfig

	// Demo workload configuration
	Demo DemoConfig
}

// EngineConfig holds submission engine tuning
type EngineConfig struct {
	FencePollInterval time.Duration `env:"GPUFLOW_FENCE_POLL_INTERVAL" envDefault:"100ms"`
	ShutdownTimeout   time.Duration `env:"GPUFLOW_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DemoConfig holds the synthetic workload shape submitted by the daemon
type DemoConfig struct {
	Queues         int           `env:"GPUFLOW_DEMO_QUEUES" envDefault:"2"`
	ChainDepth     int           `env:"GPUFLOW_DEMO_CHAIN_DEPTH" envDefault:"3"`
	SubmitInterval time.Duration `env:"GPUFLOW_DEMO_SUBMIT_INTERVAL" envDefault:"1s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.MetricsAddr == "" {
		return fmt.Errorf("metrics address is required")
	}

	if c.Engine.FencePollInterval <= 0 {
		return fmt.Errorf("fence poll interval must be positive")
	}

	if c.Demo.Queues < 1 {
		return fmt.Errorf("demo queue count must be at least 1")
	}
	if c.Demo.ChainDepth < 1 {
		return fmt.Errorf("demo chain depth must be at least 1")
	}

	return nil
}
