// Package util provides utility functions for the CLI.
package util

import (
	"fmt"
	"regexp"
	"strings"
)

// credentialPatterns find credentials that can leak into error messages and
// debug logs. Patterns with a keyword capture the value in group 2.
var credentialPatterns = []*regexp.Regexp{
	// Authorization headers
	regexp.MustCompile(`(?i)(bearer|basic)\s+([A-Za-z0-9_./+=-]{8,})`),
	// key=value and "key": "value" forms
	regexp.MustCompile(`(?i)(client[-_]?secret|api[-_]?token|access[-_]?token|token|password|secret)["']?\s*(?::=|[:=]>?)\s*["']?([^\s"',&]{8,})["']?`),
	// JWT tokens: header starts with eyJ (base64 of '{"')
	regexp.MustCompile(`(eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*)`),
}

// MaskSecretInLine replaces credential values in a line with asterisks while
// keeping the surrounding text.
func MaskSecretInLine(line string) string {
	if line == "" {
		return line
	}

	result := line
	for _, pattern := range credentialPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			submatches := pattern.FindStringSubmatch(match)
			if len(submatches) >= 3 {
				value := submatches[2]
				return strings.Replace(match, value, maskValue(value), 1)
			}
			return maskValue(match)
		})
	}
	return result
}

// maskValue hides a value completely. Only a length range is kept so the
// token type cannot be fingerprinted from its prefix or exact length.
func maskValue(value string) string {
	length := len(value)
	switch {
	case length == 0:
		return ""
	case length < 10:
		return strings.Repeat("*", length)
	case length <= 20:
		return fmt.Sprintf("********[%s]", "10-20")
	case length <= 40:
		return fmt.Sprintf("********[%s]", "20-40")
	case length <= 80:
		return fmt.Sprintf("********[%s]", "40-80")
	default:
		return fmt.Sprintf("********[%s]", "80+")
	}
}

// MaskSecretInMultiLineString masks every line of s independently.
func MaskSecretInMultiLineString(s string) string {
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = MaskSecretInLine(line)
	}
	return strings.Join(lines, "\n")
}
