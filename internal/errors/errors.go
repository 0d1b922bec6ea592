package errors

import (
	"errors"
	"fmt"
)

// Basic error check functions from standard library
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// appError implements the Error interface
type appError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

func (e *appError) Error() string {
	if e.message == "" {
		e.message = GetErrorMessage(e.code)
	}

	if e.data != nil && e.err != nil {
		return fmt.Sprintf("%s: %+v: %v", e.message, e.data, e.err)
	}

	if e.data != nil {
		return fmt.Sprintf("%s: %+v", e.message, e.data)
	}

	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *appError) Code() ErrorCode {
	return e.code
}

func (e *appError) WithMessage(msg string) Error {
	return &appError{
		code:    e.code,
		message: msg,
		err:     e.err,
		data:    e.data,
	}
}

func (e *appError) WithData(data any) Error {
	return &appError{
		code:    e.code,
		message: e.message,
		err:     e.err,
		data:    data,
	}
}

func (e *appError) GetData() any {
	return e.data
}

func (e *appError) Unwrap() error {
	return e.err
}

type defaultFactory struct{}

func (*defaultFactory) New(code ErrorCode) Error {
	return &appError{
		code: code,
	}
}

func (*defaultFactory) Wrap(code ErrorCode, err error) Error {
	return &appError{
		code: code,
		err:  err,
	}
}

func (*defaultFactory) WithMessage(code ErrorCode, msg string) Error {
	return &appError{
		code:    code,
		message: msg,
	}
}

func (*defaultFactory) WrapWithData(code ErrorCode, err error, data any) Error {
	return &appError{
		code: code,
		err:  err,
		data: data,
	}
}

func (*defaultFactory) WithData(code ErrorCode, data any) Error {
	return &appError{
		code: code,
		data: data,
	}
}

// New creates a Factory instance for error creation
func New() Factory {
	return &defaultFactory{}
}

// CodeOf returns the code of the first coded error in err's chain,
// or an empty code if there is none.
func CodeOf(err error) ErrorCode {
	var coded Error
	if As(err, &coded) {
		return coded.Code()
	}

	return ""
}

// HasCode reports whether any error in err's tree carries code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if coded, ok := err.(Error); ok && coded.Code() == code {
		return true
	}

	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if HasCode(e, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return HasCode(u.Unwrap(), code)
	}

	return false
}
