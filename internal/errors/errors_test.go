package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())

	err = Newf("formatted %s", "error")
	assert.NotNil(t, err)
	assert.Equal(t, "formatted error", err.Error())

	var appErr *ApplicationError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, Unknown, appErr.Kind())
}

func TestWrapping(t *testing.T) {
	origErr := New("original error")
	wrappedErr := Wrap(origErr, "wrapped")
	assert.Equal(t, "wrapped: original error", wrappedErr.Error())
	assert.Equal(t, origErr, Unwrap(wrappedErr))

	wrappedFormatted := Wrapf(origErr, "formatted %s", "wrapper")
	assert.Equal(t, "formatted wrapper: original error", wrappedFormatted.Error())

	// Wrapping nil returns nil
	assert.Nil(t, Wrap(nil, "wrapper"))
	assert.Nil(t, Wrapf(nil, "formatted %s", "wrapper"))

	deepWrapped := Wrap(wrappedErr, "deeper")
	assert.Equal(t, "deeper: wrapped: original error", deepWrapped.Error())
	assert.True(t, Is(deepWrapped, origErr))
}

func TestFileError(t *testing.T) {
	fileErr := NewFileError("cannot open", "/data/ct-001.dcm", FileAccessDenied, nil)
	assert.Equal(t, "cannot open: /data/ct-001.dcm", fileErr.Error())
	assert.Equal(t, "/data/ct-001.dcm", fileErr.Path())
	assert.Equal(t, FileAccessDenied, fileErr.Kind())

	origErr := fmt.Errorf("permission denied")
	fileErr = NewFileError("cannot open", "/data/ct-001.dcm", FileAccessDenied, origErr)
	assert.Equal(t, "cannot open: /data/ct-001.dcm: permission denied", fileErr.Error())
	assert.Equal(t, origErr, Unwrap(fileErr))

	assert.Equal(t, "file not found", ErrFileNotFound.Error())
	notFound := NewFileError("file not found", "/missing.dcm", FileNotFound, nil)
	assert.True(t, IsFileNotFound(notFound))
	assert.False(t, IsFileNotFound(fileErr))
}

func TestConfigError(t *testing.T) {
	configErr := NewConfigError("invalid value", "cache.max_bytes", InvalidConfig, nil)
	assert.Equal(t, "invalid value: cache.max_bytes", configErr.Error())
	assert.Equal(t, "cache.max_bytes", configErr.Param())

	origErr := fmt.Errorf("must be positive")
	configErr = NewConfigError("invalid value", "cache.max_bytes", InvalidConfig, origErr)
	assert.Equal(t, "invalid value: cache.max_bytes: must be positive", configErr.Error())

	assert.True(t, IsInvalidConfig(configErr))
	assert.False(t, IsInvalidConfig(New("some other error")))
	assert.Equal(t, InvalidConfig, ErrInvalidConfig.Kind())
}

func TestDecodeError(t *testing.T) {
	cause := fmt.Errorf("truncated pixel data")
	decodeErr := NewDecodeError("dicomfile:3", cause)
	assert.Equal(t, "decode failed: dicomfile:3: truncated pixel data", decodeErr.Error())
	assert.Equal(t, "dicomfile:3", decodeErr.ID())
	assert.Equal(t, DecodeFailed, decodeErr.Kind())
	assert.Equal(t, cause, Unwrap(decodeErr))
	assert.True(t, IsDecodeError(decodeErr))
	assert.False(t, IsUnsupportedFormat(decodeErr))

	unsupported := NewUnsupportedFormatError("dicomfile:4", fmt.Errorf("JPEG baseline"))
	assert.True(t, IsDecodeError(unsupported))
	assert.True(t, IsUnsupportedFormat(unsupported))
	assert.Equal(t, "unsupported image format: dicomfile:4: JPEG baseline", unsupported.Error())

	// Survives wrapping
	wrapped := fmt.Errorf("pipeline: %w", decodeErr)
	var de *DecodeError
	assert.True(t, As(wrapped, &de))
	assert.Equal(t, "dicomfile:3", de.ID())
}

func TestIndexOutOfRangeError(t *testing.T) {
	err := NewIndexOutOfRangeError(5, 3)
	assert.Equal(t, "index out of range: 5 (have 3 items)", err.Error())
	assert.Equal(t, 5, err.Index())
	assert.Equal(t, 3, err.Length())
	assert.True(t, IsIndexOutOfRange(err))
	assert.False(t, IsIndexOutOfRange(New("other")))
}

func TestNotEnabledError(t *testing.T) {
	err := NewNotEnabledError()
	assert.Equal(t, "viewer is not enabled", err.Error())
	assert.Equal(t, NotEnabled, err.Kind())
	assert.True(t, IsNotEnabled(err))
	assert.False(t, IsNotEnabled(NewIndexOutOfRangeError(0, 0)))
}

func TestErrorChains(t *testing.T) {
	baseErr := errors.New("base error")
	fileErr := NewFileError("file error", "/path/to/file.dcm", FileNotFound, baseErr)
	decodeErr := NewDecodeError("dicomfile:0", fileErr)

	assert.Equal(t, "decode failed: dicomfile:0: file error: /path/to/file.dcm: base error", decodeErr.Error())
	assert.True(t, Is(decodeErr, baseErr))
	assert.True(t, Is(decodeErr, fileErr))

	var fe *FileError
	assert.True(t, As(decodeErr, &fe))
	assert.Equal(t, "/path/to/file.dcm", fe.Path())

	assert.True(t, IsFileNotFound(decodeErr))
	assert.True(t, IsDecodeError(decodeErr))
}
