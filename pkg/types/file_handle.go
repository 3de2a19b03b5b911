package types

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ByteSource provides the raw bytes behind a FileHandle
type ByteSource interface {
	Open() (io.ReadCloser, error)
}

// FileHandle is a caller-owned reference to a DICOM file.
// Identity is the pointer, not the content: two handles over the same bytes
// are distinct.
type FileHandle struct {
	Name   string
	Source ByteSource
}

// NewFileHandle creates a handle backed by a file on disk
func NewFileHandle(path string) *FileHandle {
	return &FileHandle{
		Name:   filepath.Base(path),
		Source: diskSource(path),
	}
}

// NewMemoryHandle creates a handle backed by an in-memory buffer
func NewMemoryHandle(name string, data []byte) *FileHandle {
	return &FileHandle{
		Name:   name,
		Source: memorySource(data),
	}
}

// Open opens the handle's byte source
func (h *FileHandle) Open() (io.ReadCloser, error) {
	if h == nil || h.Source == nil {
		return nil, fmt.Errorf("file handle has no byte source")
	}
	return h.Source.Open()
}

// Path returns the on-disk path if the handle is backed by a file
func (h *FileHandle) Path() (string, bool) {
	if p, ok := h.Source.(diskSource); ok {
		return string(p), true
	}
	return "", false
}

// String returns a human-readable representation
func (h *FileHandle) String() string {
	var sb strings.Builder
	sb.WriteString(h.Name)
	if p, ok := h.Path(); ok {
		sb.WriteString(fmt.Sprintf(" (%s)", p))
	}
	return sb.String()
}

type diskSource string

func (d diskSource) Open() (io.ReadCloser, error) {
	return os.Open(string(d))
}

type memorySource []byte

func (m memorySource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m)), nil
}
