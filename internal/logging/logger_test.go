package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoggerSingleton(t *testing.T) {
	first := Logger()
	second := Logger()

	assert.Same(t, first, second, "expected singleton logger instance")
	assert.NoError(t, Sync())
}

func TestSetVerbose(t *testing.T) {
	t.Cleanup(func() { SetVerbose(false) })

	SetVerbose(true)
	assert.True(t, Logger().Desugar().Core().Enabled(zap.DebugLevel))

	SetVerbose(false)
	assert.False(t, Logger().Desugar().Core().Enabled(zap.DebugLevel))
}
