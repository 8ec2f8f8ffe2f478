// Package testutil provides testing utilities for srafetch packages.
// It includes temp file helpers, archive fixtures and a fake GEO/ENA server.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempDir creates a temporary directory for tests.
// It returns the path and a cleanup function.
func TempDir(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := os.MkdirTemp("", "srafetch-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	return dir, func() {
		os.RemoveAll(dir)
	}
}

// TempFile creates a temporary file with the given content.
// It returns the path and a cleanup function.
func TempFile(t *testing.T, name, content string) (string, func()) {
	t.Helper()
	dir, cleanup := TempDir(t)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		cleanup()
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path, cleanup
}

// SkipIfShort skips the test if running in short mode.
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping in short mode: %s", reason)
	}
}
