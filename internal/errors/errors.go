// Package errors provides standardized error handling for dcmview.
// It defines the error kinds raised by the image core, typed errors for
// decode failures, bad selection indices and viewer sequencing bugs, and helper
// functions for consistent creation, wrapping and inspection.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package errors that we re-export for convenience
var (
	// Unwrap unwraps an error to access the underlying error
	Unwrap = errors.Unwrap
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
)

// Common error constants for frequently occurring errors
var (
	ErrFileNotFound  = NewFileError("file not found", "", FileNotFound, nil)
	ErrInvalidPath   = NewFileError("invalid file path", "", InvalidPath, nil)
	ErrInvalidConfig = NewConfigError("invalid configuration", "", InvalidConfig, nil)
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// File error kinds
	FileNotFound
	FileAccessDenied
	InvalidPath
	// Config error kinds
	InvalidConfig
	ConfigNotFound
	// Image core error kinds
	DecodeFailed
	UnsupportedFormat
	IndexOutOfRange
	NotEnabled
)

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// FileError represents errors related to file operations
type FileError struct {
	ApplicationError
	path string
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		path: path,
	}
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// ConfigError represents errors related to configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		param: param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// DecodeError reports that the decoder failed or produced an unreadable result
// for an image identifier.
type DecodeError struct {
	ApplicationError
	id string
}

// NewDecodeError creates a new decode error for the given identifier
func NewDecodeError(id string, cause error) *DecodeError {
	return &DecodeError{
		ApplicationError: ApplicationError{
			msg:  "decode failed",
			err:  cause,
			kind: DecodeFailed,
		},
		id: id,
	}
}

// NewUnsupportedFormatError creates a decode error for input the decoder
// understands but cannot render, such as compressed pixel data.
func NewUnsupportedFormatError(id string, cause error) *DecodeError {
	return &DecodeError{
		ApplicationError: ApplicationError{
			msg:  "unsupported image format",
			err:  cause,
			kind: UnsupportedFormat,
		},
		id: id,
	}
}

// Error returns the decode error message
func (e *DecodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.msg, e.id, e.err)
	}
	return fmt.Sprintf("%s: %s", e.msg, e.id)
}

// ID returns the image identifier that failed to decode
func (e *DecodeError) ID() string {
	return e.id
}

// IndexOutOfRangeError is returned when select or delete receives an index
// outside the loaded items.
type IndexOutOfRangeError struct {
	ApplicationError
	index  int
	length int
}

// NewIndexOutOfRangeError creates a new index error
func NewIndexOutOfRangeError(index, length int) *IndexOutOfRangeError {
	return &IndexOutOfRangeError{
		ApplicationError: ApplicationError{
			msg:  "index out of range",
			kind: IndexOutOfRange,
		},
		index:  index,
		length: length,
	}
}

// Error returns the index error message
func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %d (have %d items)", e.msg, e.index, e.length)
}

// Index returns the rejected index
func (e *IndexOutOfRangeError) Index() int {
	return e.index
}

// Length returns the item count at the time of the call
func (e *IndexOutOfRangeError) Length() int {
	return e.length
}

// NotEnabledError is returned when a render is attempted on a viewer that has
// no bound surface.
type NotEnabledError struct {
	ApplicationError
}

// NewNotEnabledError creates a new not-enabled error
func NewNotEnabledError() *NotEnabledError {
	return &NotEnabledError{
		ApplicationError: ApplicationError{
			msg:  "viewer is not enabled",
			kind: NotEnabled,
		},
	}
}

// New creates a new error with a message
func New(msg string) error {
	return &ApplicationError{
		msg:  msg,
		kind: Unknown,
	}
}

// Newf creates a new error with a formatted message
func Newf(format string, args ...interface{}) error {
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		kind: Unknown,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  msg,
		err:  err,
		kind: Unknown,
	}
}

// Wrapf wraps an existing error with additional formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &ApplicationError{
		msg:  fmt.Sprintf(format, args...),
		err:  err,
		kind: Unknown,
	}
}

// IsFileNotFound checks if the error is a file not found error
func IsFileNotFound(err error) bool {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind() == FileNotFound
	}
	return false
}

// IsInvalidConfig checks if the error is an invalid configuration error
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == InvalidConfig
	}
	return false
}

// IsDecodeError checks if the error is a decode error of any kind
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// IsUnsupportedFormat checks if the error is a decode error for an unsupported format
func IsUnsupportedFormat(err error) bool {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr.Kind() == UnsupportedFormat
	}
	return false
}

// IsIndexOutOfRange checks if the error is an index out of range error
func IsIndexOutOfRange(err error) bool {
	var indexErr *IndexOutOfRangeError
	return errors.As(err, &indexErr)
}

// IsNotEnabled checks if the error is a viewer not enabled error
func IsNotEnabled(err error) bool {
	var notEnabled *NotEnabledError
	return errors.As(err, &notEnabled)
}
