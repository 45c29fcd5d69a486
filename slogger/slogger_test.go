package slogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, LevelDebug, LevelFromString("debug"))
	assert.Equal(t, LevelInfo, LevelFromString("INFO"))
	assert.Equal(t, LevelWarn, LevelFromString("Warn"))
	assert.Equal(t, LevelError, LevelFromString("error"))
	assert.Equal(t, DefaultLogLevel, LevelFromString("verbose"))
}

func TestDevNullLogger(t *testing.T) {
	logger := NewDevNullLogger()
	logger.Info("ignored", "key", "value")
	child := logger.With("key", "value")
	assert.NotNil(t, child)
}
