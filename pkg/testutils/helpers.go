package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateTestFilesWithContent creates test files with specific content
func CreateTestFilesWithContent(t *testing.T, dir string, files map[string]string) {
	for name, content := range files {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
		require.NoError(t, err)
	}
}

// CreateTestSeries writes n small DICOM files (IM_0000.dcm...) plus a stray
// text file into dir and returns the DICOM paths in order.
func CreateTestSeries(t *testing.T, dir string, n int) []string {
	t.Helper()
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, fmt.Sprintf("IM_%04d.dcm", i))
		f := Gray8(4, 4)
		f.Pixels[0] = byte(i)
		require.NoError(t, os.WriteFile(name, BuildDICOM(f), 0644))
		paths = append(paths, name)
	}
	CreateTestFilesWithContent(t, dir, map[string]string{"notes.txt": "not an image"})
	return paths
}

// StripANSI removes ANSI escape sequences from a string
func StripANSI(str string) string {
	var result []rune
	inEscape := false
	for _, r := range str {
		if r == '\x1b' {
			inEscape = true
			continue
		}
		if inEscape {
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				inEscape = false
			}
			continue
		}
		result = append(result, r)
	}
	return string(result)
}
