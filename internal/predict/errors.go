package predict

import "codeberg.org/mutker/kerntune/internal/errors"

const (
	ErrModelUnavailable = errors.ErrorCode("predict_model_unavailable")
	ErrLoadModel        = errors.ErrorCode("predict_load_model_failed")
	ErrInvalidModel     = errors.ErrorCode("predict_invalid_model")
	ErrPredictFailed    = errors.ErrorCode("predict_failed")
	ErrShapeMismatch    = errors.ErrorCode("predict_shape_mismatch")
	ErrUnknownType      = errors.ErrorCode("predict_unknown_model_type")
)
