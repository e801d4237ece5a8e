package output

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/ArmisSecurity/armis-sarif/internal/cli"
	"github.com/ArmisSecurity/armis-sarif/internal/sarif"
	"github.com/ArmisSecurity/armis-sarif/internal/scan"
)

// Formatter renders command results.
type Formatter interface {
	FormatDiscovery(w io.Writer, result *sarif.DiscoveryResult) error
	FormatResult(w io.Writer, result *scan.Result) error
}

// GetFormatter returns the formatter for an output format name.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "human":
		return &HumanFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ColorTerminal reports whether w is a terminal that should receive ANSI
// colors.
func ColorTerminal(w io.Writer) bool {
	if !cli.ColorsEnabled() {
		return false
	}
	if cli.ColorsForced() {
		return true
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
