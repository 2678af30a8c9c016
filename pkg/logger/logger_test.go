package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestInit_AppliesLevel(t *testing.T) {
	Init("post-service", "warn")

	assert.False(t, Logger().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Logger().Core().Enabled(zapcore.WarnLevel))
}

func TestInit_UnknownLevelKeepsInfo(t *testing.T) {
	Init("post-service", "verbose")

	assert.True(t, Logger().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Logger().Core().Enabled(zapcore.DebugLevel))
}
