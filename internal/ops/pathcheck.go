package ops

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/pulsekit/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // file must exist and be a regular file
	PathCheckWrite                      // file may exist; it is replaced atomically
)

// File extensions by role.
const (
	ExtPulses = ".txt"
	ExtJSON   = ".json"
	ExtRaw    = ".npz"
)

// ValidatePath checks a path supplied for reading or writing a data file.
// It checks:
// 1. The path is non-empty
// 2. Extension (when ext is non-empty)
// 3. For reads, the file exists and is not a directory
// 4. The file is not a symlink
func ValidatePath(path string, mode PathCheckMode, ext string) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("path is required")
	}

	cleaned := filepath.Clean(path)
	if ext != "" && !strings.EqualFold(filepath.Ext(cleaned), ext) {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have %s extension: %s", ext, path))
	}

	info, err := os.Lstat(cleaned)
	switch {
	case err == nil:
		if info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest(fmt.Sprintf("path must not be a symlink: %s", path))
		}
		if info.IsDir() {
			return errors.NewInvalidRequest(fmt.Sprintf("path is a directory: %s", path))
		}
	case os.IsNotExist(err):
		if mode == PathCheckRead {
			return errors.NewNotFound(path)
		}
	default:
		return errors.NewInternal(err)
	}

	return nil
}

// ValidateFileName checks a file name read from a data file (a selection's
// file_name) before it is joined to a data directory.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewValidation("file_name must not be empty")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return errors.NewInvalidRequest(fmt.Sprintf("file_name must be relative: %s", name))
	}
	if containsTraversal(name) {
		return errors.NewInvalidRequest(fmt.Sprintf("file_name must not contain directory traversal (..): %s", name))
	}
	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	// Selections written on another platform may use either separator.
	for _, sep := range []string{"/", `\`} {
		for _, part := range strings.Split(path, sep) {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename sanitizes a string for safe use as a single path
// component. Path separators and ".." sequences become dashes.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	// Remove null bytes and other control characters
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}

// asPulseError passes PulseErrors through and wraps anything else as internal.
func asPulseError(err error) error {
	if err == nil {
		return nil
	}
	var pErr *errors.PulseError
	if stderrors.As(err, &pErr) {
		return err
	}
	return errors.NewInternal(err)
}
