package params

import "codeberg.org/mutker/kerntune/internal/errors"

const (
	ErrUnknownParameter = errors.ErrorCode("params_unknown_parameter")
	ErrInvalidValue     = errors.ErrorCode("params_invalid_value")
	ErrKindMismatch     = errors.ErrorCode("params_kind_mismatch")
	ErrDuplicate        = errors.ErrorCode("params_duplicate_parameter")
	ErrReadGrid         = errors.ErrorCode("params_read_grid_failed")
)
