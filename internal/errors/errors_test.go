package errors_test

import (
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/kerntune/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := errors.New().Wrap(errors.ErrOperationFailed, cause)

	require.Error(t, err)
	assert.Equal(t, errors.ErrOperationFailed, err.Code())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "Operation failed: permission denied", err.Error())
}

func TestWithDataMessage(t *testing.T) {
	err := errors.New().WithData(errors.ErrInvalidConfig, struct {
		Field string
	}{Field: "interval"})

	assert.Contains(t, err.Error(), "Invalid configuration")
	assert.Contains(t, err.Error(), "interval")
}

func TestCodeOf(t *testing.T) {
	inner := errors.New().New(errors.ErrInvalidLogLevel)
	outer := errors.New().Wrap(errors.ErrInvalidConfig, inner)

	assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(outer))
	assert.True(t, errors.HasCode(outer, errors.ErrInvalidLogLevel))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(stderrors.New("plain")))
}

func TestUnknownCodeMessage(t *testing.T) {
	assert.Equal(t, "sysctl_write_failed", errors.GetErrorMessage("sysctl_write_failed"))
}
