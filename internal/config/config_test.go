package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendModeMock, cfg.BackendMode)
	assert.Equal(t, 60*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 10, cfg.MaxRounds)
	assert.InDelta(t, 0.05, cfg.Thresholds.DemographicParity, 1e-9)
	assert.InDelta(t, 0.25, cfg.Thresholds.PSI, 1e-9)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("AICOMPLY_PORT", "9090")
	t.Setenv("AICOMPLY_BACKEND_MODE", "proxy")
	t.Setenv("AICOMPLY_BACKEND_TIMEOUT", "5s")
	t.Setenv("AICOMPLY_THRESHOLDS_DEMOGRAPHIC_PARITY", "0.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, BackendModeProxy, cfg.BackendMode)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.InDelta(t, 0.1, cfg.Thresholds.DemographicParity, 1e-9)
}
