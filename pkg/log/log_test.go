package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewLogger("warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("loud")
	assert.Error(t, err)
	assert.Panics(t, func() { MustNewLogger("loud") })
}

func TestInitGlobalLogger(t *testing.T) {
	require.Error(t, InitGlobalLogger("loud"))
	require.NoError(t, InitGlobalLogger("error"))
	assert.False(t, zap.S().Desugar().Core().Enabled(zapcore.WarnLevel))
	// later calls keep the first logger
	require.NoError(t, InitGlobalLogger("debug"))
	assert.False(t, zap.S().Desugar().Core().Enabled(zapcore.DebugLevel))
}
