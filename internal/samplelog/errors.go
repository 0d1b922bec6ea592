package samplelog

import "codeberg.org/mutker/kerntune/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidPath   = errors.ErrorCode("samplelog_invalid_path")
	ErrUnknownFormat = errors.ErrorCode("samplelog_unknown_format")

	// File Errors
	ErrOpenFailed   = errors.ErrorCode("samplelog_open_failed")
	ErrHeaderFailed = errors.ErrorCode("samplelog_header_failed")
	ErrWriteFailed  = errors.ErrorCode("samplelog_write_failed")
	ErrClosed       = errors.ErrorCode("samplelog_closed")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("samplelog_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("samplelog_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("samplelog_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("samplelog_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed
)
