package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" WARNING "))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, zapLevel(DEBUG))
	assert.Equal(t, zapcore.InfoLevel, zapLevel(INFO))
	assert.Equal(t, zapcore.FatalLevel, zapLevel(FATAL))
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	log := NewNop().With("component", "test")
	assert.NotPanics(t, func() {
		log.Info("value %d", 1)
		log.Infow("value", "n", 1)
		log.Warnw("warn")
		log.Errorw("error", "err", assert.AnError)
	})
}
