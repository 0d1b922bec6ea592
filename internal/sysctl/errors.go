package sysctl

import "codeberg.org/mutker/kerntune/internal/errors"

const (
	ErrInvalidKey  = errors.ErrorCode("sysctl_invalid_key")
	ErrWriteFailed = errors.ErrorCode("sysctl_write_failed")
	ErrReadFailed  = errors.ErrorCode("sysctl_read_failed")
	ErrUnknownSink = errors.ErrorCode("sysctl_unknown_sink")
)
