package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.DebugLevel, logger.ParseLevel("debug"))
	assert.Equal(t, logger.WarnLevel, logger.ParseLevel("warning"))
	assert.Equal(t, logger.ErrorLevel, logger.ParseLevel("ERROR"))
	assert.Equal(t, logger.InfoLevel, logger.ParseLevel(""))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "warning", true)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	logger.Info().Msg("hidden")
	logger.Warn().Str("key", "vm.swappiness").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "vm.swappiness")
}

func TestErrorWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "debug", true)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	err := errors.New().New(errors.ErrTimeout)
	logger.Default().ErrorWithContext(err, "control", "tick").Msg("failed")

	out := buf.String()
	assert.Contains(t, out, "operation_timeout")
	assert.Contains(t, out, "control")
}
