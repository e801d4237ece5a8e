// Package output renders discovery and run results for the terminal.
package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/ArmisSecurity/armis-sarif/internal/cli"
	"github.com/ArmisSecurity/armis-sarif/internal/model"
)

// Color palette - using Tailwind CSS color system for consistency
// AdaptiveColor automatically selects Light/Dark variant based on terminal background
var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#22C55E"} // green-600 / green-500
	colorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"} // amber-600 / amber-500
	colorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"} // red-600 / red-500
	colorMuted   = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#6B7280"} // gray-600 / gray-500
	colorAccent  = lipgloss.AdaptiveColor{Light: "#7c3aed", Dark: "#7c3aed"} // purple-600 (Armis brand)
	colorBorder  = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#374151"} // gray-300 / gray-700
	colorBright  = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#FFFFFF"} // gray-800 / white
)

// Styles holds all lipgloss styles for consistent formatting
type Styles struct {
	HeaderBanner lipgloss.Style
	SectionTitle lipgloss.Style
	TableHeader  lipgloss.Style

	// Status indicators
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	ErrorText   lipgloss.Style
	MutedText   lipgloss.Style

	SummaryBox lipgloss.Style
	SummaryKey lipgloss.Style

	Bold     lipgloss.Style
	ScanID   lipgloss.Style
	Duration lipgloss.Style
	Path     lipgloss.Style

	// Help output styles
	HelpHeading lipgloss.Style // Bold for section headers (Usage:, Flags:, etc.)
	HelpCommand lipgloss.Style // Accent color for command names
	HelpFlag    lipgloss.Style // Accent color for --flag-name
	HelpEnv     lipgloss.Style // Muted bold for ARMIS_* environment variables
}

// DefaultStyles returns the default style configuration
func DefaultStyles() *Styles {
	return &Styles{
		HeaderBanner: lipgloss.NewStyle().Bold(true).Foreground(colorBright),
		SectionTitle: lipgloss.NewStyle().Bold(true).Foreground(colorBright),
		TableHeader:  lipgloss.NewStyle().Bold(true).Foreground(colorMuted),

		SuccessText: lipgloss.NewStyle().Foreground(colorSuccess),
		WarningText: lipgloss.NewStyle().Foreground(colorWarning),
		ErrorText:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
		MutedText:   lipgloss.NewStyle().Foreground(colorMuted),

		SummaryBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
		SummaryKey: lipgloss.NewStyle().Foreground(colorMuted),

		Bold:     lipgloss.NewStyle().Bold(true),
		ScanID:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Duration: lipgloss.NewStyle().Bold(true),
		Path:     lipgloss.NewStyle().Foreground(colorBright),

		HelpHeading: lipgloss.NewStyle().Bold(true),
		HelpCommand: lipgloss.NewStyle().Foreground(colorAccent),
		HelpFlag:    lipgloss.NewStyle().Foreground(colorAccent),
		HelpEnv:     lipgloss.NewStyle().Bold(true).Foreground(colorMuted),
	}
}

// NoColorStyles returns styles with all formatting disabled (for --color=never).
// The summary box keeps its border so the layout survives without color.
func NoColorStyles() *Styles {
	plain := lipgloss.NewStyle()
	return &Styles{
		HeaderBanner: plain,
		SectionTitle: plain,
		TableHeader:  plain,

		SuccessText: plain,
		WarningText: plain,
		ErrorText:   plain,
		MutedText:   plain,

		SummaryBox: lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).Padding(0, 1),
		SummaryKey: plain,

		Bold:     plain,
		ScanID:   plain,
		Duration: plain,
		Path:     plain,

		HelpHeading: plain,
		HelpCommand: plain,
		HelpFlag:    plain,
		HelpEnv:     plain,
	}
}

// currentStyles holds the active style set
var currentStyles *Styles

// lipglossInitialized tracks whether lipgloss renderer has been configured
var lipglossInitialized bool

// GetStyles returns the current style set based on color mode
func GetStyles() *Styles {
	if currentStyles == nil {
		SyncColors()
	}
	return currentStyles
}

// SyncColors updates the styles based on the current color mode.
func SyncColors() {
	// Initialize lipgloss renderer once (configure to output to stderr)
	if !lipglossInitialized {
		lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(os.Stderr))
		lipglossInitialized = true
	}

	if cli.ColorsEnabled() {
		currentStyles = DefaultStyles()
		if cli.ColorsForced() {
			// --color=always: force TrueColor regardless of TTY detection
			lipgloss.SetColorProfile(termenv.TrueColor)
		} else {
			lipgloss.SetColorProfile(lipgloss.ColorProfile())
		}
	} else {
		currentStyles = NoColorStyles()
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// StatusText returns the text style for a scan status.
func (s *Styles) StatusText(status model.ScanStatus) lipgloss.Style {
	switch status {
	case model.StatusComplete, model.StatusSubmitted:
		return s.SuccessText
	case model.StatusTimeout, model.StatusIncomplete:
		return s.WarningText
	case model.StatusFailed, model.StatusError:
		return s.ErrorText
	default:
		return s.MutedText
	}
}

// Box drawing constants for consistency
const (
	BoxWidth    = 68  // Default box width (fallback)
	MinBoxWidth = 60  // Minimum usable width
	MaxBoxWidth = 120 // Cap to prevent overly wide output
	BoxPadding  = 4   // Margin from terminal edge
)

// TerminalWidth detects the current terminal width with fallbacks.
// Returns BoxWidth if detection fails (non-TTY, pipe, etc.)
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || w <= 0 {
		return BoxWidth
	}
	usable := w - BoxPadding
	if usable < MinBoxWidth {
		return MinBoxWidth
	}
	if usable > MaxBoxWidth {
		return MaxBoxWidth
	}
	return usable
}
