// Package cli provides CLI utilities including colored output with TTY detection.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorMode represents the color output strategy.
type ColorMode string

const (
	ColorModeAuto   ColorMode = "auto"
	ColorModeAlways ColorMode = "always"
	ColorModeNever  ColorMode = "never"
)

// ColorModes lists the accepted --color values.
var ColorModes = []string{string(ColorModeAuto), string(ColorModeAlways), string(ColorModeNever)}

var (
	colorsEnabled = true
	colorsForced  = false

	errorLabelStyle   = lipgloss.NewStyle()
	warningLabelStyle = lipgloss.NewStyle()
	contextStyle      = lipgloss.NewStyle()
)

// InitColors resolves the final color state based on the --color flag value,
// the NO_COLOR env var, and TTY detection. This should be called after flag parsing.
//
// Precedence:
//  1. --color=always -> colors ON (overrides everything, including NO_COLOR)
//  2. --color=never  -> colors OFF
//  3. NO_COLOR env   -> colors OFF (takes precedence over auto)
//  4. TERM=dumb      -> colors OFF
//  5. --color=auto   -> detect TTY on stderr
func InitColors(mode ColorMode) {
	colorsForced = false
	switch mode {
	case ColorModeAlways:
		colorsForced = true
		enableColors()
	case ColorModeNever:
		disableColors()
	default:
		if os.Getenv("NO_COLOR") != "" {
			disableColors()
			return
		}
		if strings.Contains(strings.ToLower(os.Getenv("TERM")), "dumb") {
			disableColors()
			return
		}
		if !term.IsTerminal(int(os.Stderr.Fd())) {
			disableColors()
			return
		}
		enableColors()
	}
}

// ColorsEnabled returns whether colors are currently enabled.
func ColorsEnabled() bool {
	return colorsEnabled
}

// ColorsForced reports whether --color=always was requested.
func ColorsForced() bool {
	return colorsForced
}

func enableColors() {
	colorsEnabled = true
	if colorsForced {
		lipgloss.SetColorProfile(termenv.ANSI256)
	}
	errorLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	warningLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
	contextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
}

func disableColors() {
	colorsEnabled = false
	errorLabelStyle = lipgloss.NewStyle()
	warningLabelStyle = lipgloss.NewStyle()
	contextStyle = lipgloss.NewStyle()
}

// parseErrorMessage splits an error chain ending in a JSON body with a
// "detail" key into the detail and the text before it. Other messages are
// returned unchanged with an empty context.
func parseErrorMessage(msg string) (reason, context string) {
	idx := strings.Index(msg, "{")
	if idx < 0 {
		return msg, ""
	}

	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(msg[idx:]), &body); err != nil || body.Detail == "" {
		return msg, ""
	}

	context = strings.TrimRight(strings.TrimSpace(msg[:idx]), ":")
	return body.Detail, context
}

// PrintError writes a colored error message to stderr.
// Format: "Error: <message>\n", with the error chain on a second line when
// the message ends in a service error body.
func PrintError(msg string) {
	reason, context := parseErrorMessage(msg)
	fmt.Fprintf(os.Stderr, "%s %s\n", errorLabelStyle.Render("Error:"), reason)
	if context != "" {
		fmt.Fprintf(os.Stderr, "  %s\n", contextStyle.Render(context))
	}
}

// PrintErrorf is like PrintError but with fmt.Sprintf formatting.
func PrintErrorf(format string, args ...interface{}) {
	PrintError(fmt.Sprintf(format, args...))
}

// PrintWarning writes a colored warning message to stderr.
// Format: "Warning: <message>\n"
func PrintWarning(msg string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", warningLabelStyle.Render("Warning:"), msg)
}

// PrintWarningf is like PrintWarning but with fmt.Sprintf formatting.
func PrintWarningf(format string, args ...interface{}) {
	PrintWarning(fmt.Sprintf(format, args...))
}
