package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for level, want := range cases {
		logger, err := NewLogger(level, "production")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(want), level)
		if want > zapcore.DebugLevel {
			assert.False(t, logger.Core().Enabled(want-1), level)
		}
	}
}
