package errors

import (
	"strings"
	"unicode"
)

// ValidateInputPath validates a user-supplied input path for safety.
// It prevents path traversal sequences and unreasonable lengths before the
// path is handed to the ingestion layer.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
func ValidateInputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	return nil
}

// ValidateSheetName validates an XLSX sheet name supplied on the command line.
// Sheet names come straight from user flags, so keep the rules conservative.
func ValidateSheetName(name string) error {
	if len(name) > 64 {
		return New(ErrCodeInvalidInput, "sheet name too long (max 64 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "sheet name contains invalid control characters")
		}
	}
	return nil
}
