// pkg/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvDur(t *testing.T) {
	t.Setenv("TEST_DUR", "30")
	assert.Equal(t, time.Duration(30), envDur("TEST_DUR", 10))
	assert.Equal(t, time.Duration(10), envDur("TEST_DUR_UNSET", 10))
}

func TestEnvDurMalformedFallsBackToDefault(t *testing.T) {
	// A typo'd value must not silently become zero: a zero here would turn
	// into an http.Client with no timeout at all.
	t.Setenv("TEST_DUR", "3O")
	assert.Equal(t, time.Duration(10), envDur("TEST_DUR", 10))

	t.Setenv("TEST_DUR", "")
	assert.Equal(t, time.Duration(10), envDur("TEST_DUR", 10))
}

func TestLoadTimeoutDefaultsSurviveMalformedEnv(t *testing.T) {
	t.Setenv("PLATFORM_TIMEOUT_SEC", "ten")
	t.Setenv("TOKEN_REFRESH_MARGIN_SEC", "sixty")
	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 60*time.Second, cfg.RefreshMargin)
}
