package output

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ArmisSecurity/armis-sarif/internal/cli"
)

// GetLexer returns the appropriate chroma lexer for a filename.
// Falls back to plaintext if the language cannot be detected.
func GetLexer(filename string) chroma.Lexer {
	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	// Coalesce merges adjacent tokens of the same type for cleaner output
	return chroma.Coalesce(lexer)
}

// GetChromaStyle returns the chroma style based on terminal theme settings.
// Returns nil when colors are disabled.
func GetChromaStyle() *chroma.Style {
	if !cli.ColorsEnabled() {
		return nil
	}
	if lipgloss.HasDarkBackground() {
		return styles.Get("monokai")
	}
	return styles.Get("github")
}

// Highlight returns code with ANSI syntax highlighting for the language of
// filename. The input is returned unchanged when colors are disabled or
// highlighting fails.
func Highlight(code, filename string) string {
	style := GetChromaStyle()
	if style == nil {
		return code
	}

	iterator, err := GetLexer(filename).Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf bytes.Buffer
	if err := getTerminalFormatter().Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// HighlightJSON highlights an encoded JSON document. Trailing newlines are
// preserved.
func HighlightJSON(data []byte) string {
	doc := string(data)
	trimmed := strings.TrimRight(doc, "\n")
	return Highlight(trimmed, "output.json") + doc[len(trimmed):]
}

// getTerminalFormatter returns the appropriate chroma formatter for terminal color depth.
func getTerminalFormatter() chroma.Formatter {
	profile := lipgloss.ColorProfile()
	switch profile {
	case termenv.TrueColor:
		return formatters.Get("terminal16m")
	case termenv.ANSI256:
		return formatters.Get("terminal256")
	default:
		return formatters.Get("terminal")
	}
}
