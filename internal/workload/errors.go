package workload

import "codeberg.org/mutker/kerntune/internal/errors"

const (
	ErrInvalidLabel  = errors.ErrorCode("workload_invalid_label")
	ErrDriverFailed  = errors.ErrorCode("workload_driver_failed")
	ErrIOSetupFailed = errors.ErrorCode("workload_io_setup_failed")
)
