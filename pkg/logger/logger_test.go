package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/eduplanner/timetabling/pkg/config"
)

func TestNew(t *testing.T) {
	scenarios := []struct {
		cfg      config.Config
		expected zapcore.Level
	}{
		{config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "warn", Format: "json"}}, zapcore.WarnLevel},
		{config.Config{Env: config.EnvDevelopment, Log: config.LogConfig{Level: "debug", Format: "console"}}, zapcore.DebugLevel},
		{config.Config{Env: config.EnvProduction, Log: config.LogConfig{Level: "loud"}}, zapcore.InfoLevel},
	}

	for _, scenario := range scenarios {
		log, err := New(&scenario.cfg)

		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(scenario.expected))
		assert.False(t, log.Core().Enabled(scenario.expected-1))
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Level("", zapcore.DebugLevel))
	assert.Equal(t, zapcore.ErrorLevel, Level("error", zapcore.DebugLevel))
	assert.Equal(t, zapcore.WarnLevel, Level("WARN", zapcore.DebugLevel))
	assert.Equal(t, zapcore.InfoLevel, Level("loud", zapcore.DebugLevel))
}
