package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORY_TICK_PERIOD", "")
	t.Setenv("VISIBILITY_WINDOW", "")
	t.Setenv("ENV", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.StoryTickPeriod)
	assert.Equal(t, 100*time.Millisecond, cfg.VisibilityWindow)
	assert.Equal(t, "@every 1m", cfg.StoryResyncSpec)
	assert.Equal(t, "development", cfg.Env)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("STORY_TICK_PERIOD", "20ms")

	cfg, err := Load([]string{"--port", "7100", "--visibility-window", "250ms"})
	require.NoError(t, err)
	assert.Equal(t, "7100", cfg.Port)
	assert.Equal(t, 20*time.Millisecond, cfg.StoryTickPeriod)
	assert.Equal(t, 250*time.Millisecond, cfg.VisibilityWindow)
}

func TestLoad_Rejects(t *testing.T) {
	t.Setenv("STORY_TICK_PERIOD", "soon")
	_, err := Load(nil)
	assert.Error(t, err)

	t.Setenv("STORY_TICK_PERIOD", "")
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err = Load(nil)
	assert.Error(t, err)

	t.Setenv("ENV", "")
	_, err = Load([]string{"--tick-period", "0s"})
	assert.Error(t, err)
}
