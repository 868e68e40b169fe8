package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger_ParsesLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	require.NoError(t, InitLogger())
	require.False(t, Logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, Logger.Core().Enabled(zapcore.WarnLevel))
}

func TestInitLogger_RejectsInvalidLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	err := InitLogger()
	require.Error(t, err)
	require.Contains(t, err.Error(), "LOG_LEVEL")
}
