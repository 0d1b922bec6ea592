package harness

import "codeberg.org/mutker/kerntune/internal/errors"

const (
	ErrInvalidRequest = errors.ErrorCode("harness_invalid_request")
	ErrWorkloadFailed = errors.ErrorCode("harness_workload_failed")
	ErrCanceled       = errors.ErrCanceled
	ErrApplyFailed    = errors.ErrorCode("harness_apply_failed")
	ErrSampleLog      = errors.ErrorCode("harness_sample_log_failed")
)
