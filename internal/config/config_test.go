package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, 100*time.Millisecond, cfg.Engine.FencePollInterval)
	assert.Equal(t, 30*time.Second, cfg.Engine.ShutdownTimeout)
	assert.Equal(t, 2, cfg.Demo.Queues)
	assert.Equal(t, 3, cfg.Demo.ChainDepth)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GPUFLOW_METRICS_ADDR", ":8123")
	t.Setenv("GPUFLOW_FENCE_POLL_INTERVAL", "25ms")
	t.Setenv("GPUFLOW_DEMO_QUEUES", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":8123", cfg.MetricsAddr)
	assert.Equal(t, 25*time.Millisecond, cfg.Engine.FencePollInterval)
	assert.Equal(t, 4, cfg.Demo.Queues)
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidDemoShape(t *testing.T) {
	t.Setenv("GPUFLOW_DEMO_QUEUES", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_FencePollInterval(t *testing.T) {
	cfg := &Config{LogLevel: "info", MetricsAddr: ":9100"}
	cfg.Demo.Queues = 1
	cfg.Demo.ChainDepth = 1

	cfg.Engine.FencePollInterval = 0
	assert.Error(t, cfg.Validate())

	cfg.Engine.FencePollInterval = time.Millisecond
	assert.NoError(t, cfg.Validate())
}
