// =============================================================================
// COUNTER Usage Converter - File Utilities
// =============================================================================
//
// Small file-system helpers shared by the loaders and the writer:
//   - Directory creation
//   - Idempotent file writing (truncate + rewrite)
//   - Package-name sanitization for output file names
//
// =============================================================================

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory (and parents) if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// WriteFile writes data to path, creating the parent directory if needed.
// The file is truncated first, so writing the same bytes twice leaves the
// same file.
func WriteFile(path string, data []byte) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// maxFileNameLen caps sanitized names well under common filesystem limits,
// leaving room for the format placeholders around them.
const maxFileNameLen = 150

// SanitizeFileName makes a package name safe to use as a file name.
// Path separators and characters that upset at least one mainstream
// filesystem are replaced with underscores; trailing dots and spaces are
// trimmed.
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case r < 0x20:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	name = strings.Trim(b.String(), " .")
	if name == "" {
		name = "untitled"
	}
	if len(name) > maxFileNameLen {
		name = name[:maxFileNameLen]
	}
	return name
}
