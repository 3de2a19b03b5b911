package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"dcmview/pkg/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	testutils.CreateTestSeries(t, dir, 3)

	out, err := execute(t, "inspect", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "IM_0000.dcm")
	assert.Contains(t, out, "IM_0002.dcm")
	assert.NotContains(t, out, "notes.txt")
	assert.Contains(t, out, "4x4")
	assert.Contains(t, out, "MONOCHROME2/8")
	assert.Contains(t, out, "3 decoded, 0 failed | cache 12 KiB of 200 MiB (3 entries)")
}

func TestInspectReportsFailures(t *testing.T) {
	dir := t.TempDir()
	testutils.CreateTestSeries(t, dir, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "IM_bad.dcm"), []byte("garbage"), 0644))

	out, err := execute(t, "inspect", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files could not be decoded")
	assert.Contains(t, out, "error:")
	assert.Contains(t, out, "1 decoded, 1 failed")
}

func TestCacheSizeFlag(t *testing.T) {
	dir := t.TempDir()
	paths := testutils.CreateTestSeries(t, dir, 1)

	out, err := execute(t, "--cache-size", "64MiB", "inspect", paths[0])
	require.NoError(t, err)
	assert.Contains(t, out, "of 64 MiB")

	_, err = execute(t, "--cache-size", "lots", "inspect", paths[0])
	assert.Error(t, err)
}

func TestInspectArguments(t *testing.T) {
	_, err := execute(t, "inspect")
	assert.Error(t, err)

	_, err = execute(t, "inspect", filepath.Join(t.TempDir(), "missing.dcm"))
	assert.Error(t, err)
}

func TestInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  max_bytes: 0\n"), 0644))

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"--config", path, "inspect", "."})
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
