package util

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// SanitizePath cleans a user supplied relative path and rejects traversal.
func SanitizePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}

	cleaned := filepath.Clean(p)

	if cleaned == "." || cleaned == "" {
		return "", errors.New("invalid path")
	}

	for _, seg := range strings.Split(filepath.ToSlash(cleaned), "/") {
		if seg == ".." {
			return "", errors.New("path traversal detected")
		}
	}

	return cleaned, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeFileName replaces every character outside [A-Za-z0-9._-] so that a
// service supplied identifier can be embedded in a file name.
func SafeFileName(s string) string {
	s = unsafeFileChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unnamed"
	}
	return s
}
