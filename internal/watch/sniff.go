package watch

import (
	"bytes"
	"io"
	"os"

	"dcmview/internal/errors"
	"dcmview/internal/log"
)

// DICOM Part 10 files carry a 128 byte preamble followed by "DICM"
const (
	preambleLength = 128
	magic          = "DICM"
)

// Sniff reports whether the file at path starts like a DICOM Part 10 file.
// Read errors are returned as FileErrors; a short file is simply not DICOM.
func Sniff(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		kind := errors.FileAccessDenied
		if os.IsNotExist(err) {
			kind = errors.FileNotFound
		}
		return false, errors.NewFileError("failed to open file", path, kind, err)
	}
	defer file.Close()

	buffer := make([]byte, preambleLength+len(magic))
	if _, err := io.ReadFull(file, buffer); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, errors.NewFileError("failed to read file", path, errors.FileOperationFailed, err)
	}
	return bytes.Equal(buffer[preambleLength:], []byte(magic)), nil
}

// Accept reports whether a directory entry should be loaded: its name
// matches, or content sniffing is on and the header says DICOM
func (m *Matcher) Accept(path string) bool {
	if m.Match(path) {
		return true
	}
	if !m.sniff {
		return false
	}
	ok, err := Sniff(path)
	if err != nil {
		log.LogWithFields(log.F("file", path), log.F("error", err)).Debug("content sniffing failed")
	}
	return ok
}
