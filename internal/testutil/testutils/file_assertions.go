package helpers

import (
	"os"
	"strings"
	"testing"
	"time"
)

// FileAssertions provides utilities for asserting file system state in tests.
type FileAssertions struct {
	t    *testing.T
	path string
}

// NewFileAssertions creates a new file assertions helper for path.
func NewFileAssertions(t *testing.T, path string) *FileAssertions {
	return &FileAssertions{t: t, path: path}
}

// AssertExists validates that the file exists.
func (fa *FileAssertions) AssertExists() *FileAssertions {
	fa.t.Helper()
	if _, err := os.Stat(fa.path); err != nil {
		fa.t.Errorf("Expected file to exist: %s (%v)", fa.path, err)
	}
	return fa
}

// AssertContains validates that the file contains expected content.
func (fa *FileAssertions) AssertContains(expected string) *FileAssertions {
	fa.t.Helper()
	content, err := os.ReadFile(fa.path)
	if err != nil {
		fa.t.Errorf("Failed to read file %s: %v", fa.path, err)
		return fa
	}
	if !strings.Contains(string(content), expected) {
		fa.t.Errorf("File %s does not contain %q.\nActual content:\n%s", fa.path, expected, content)
	}
	return fa
}

// Eventually polls until the file contains expected or timeout elapses.
func (fa *FileAssertions) Eventually(expected string, timeout time.Duration) *FileAssertions {
	fa.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if content, err := os.ReadFile(fa.path); err == nil && strings.Contains(string(content), expected) {
			return fa
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fa.AssertContains(expected)
}
