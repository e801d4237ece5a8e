package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ArmisSecurity/armis-sarif/internal/model"
	"github.com/ArmisSecurity/armis-sarif/internal/sarif"
	"github.com/ArmisSecurity/armis-sarif/internal/scan"
	"github.com/ArmisSecurity/armis-sarif/internal/util"
)

// HumanFormatter formats results for people: a table of discovered files and
// a boxed run summary.
type HumanFormatter struct {
	// Width overrides the detected terminal width.
	Width int
}

func (f *HumanFormatter) width() int {
	if f.Width > 0 {
		return f.Width
	}
	return TerminalWidth()
}

// FormatDiscovery writes one table row per file, followed by the skipped
// files when the limit was reached.
func (f *HumanFormatter) FormatDiscovery(w io.Writer, result *sarif.DiscoveryResult) error {
	s := GetStyles()

	fmt.Fprintf(w, "%s\n\n", s.HeaderBanner.Render(fmt.Sprintf("Found %d SARIF %s", len(result.Files), util.Plural(len(result.Files), "file", "files"))))
	renderFileTable(w, result.Files, f.width())

	if result.Truncated {
		fmt.Fprintf(w, "\n%s\n\n", s.WarningText.Render(fmt.Sprintf("%s %d more %s skipped: file limit reached",
			IconWarning, len(result.Skipped), util.Plural(len(result.Skipped), "file", "files"))))
		renderFileTable(w, result.Skipped, f.width())
	}
	return nil
}

// renderFileTable aligns columns by display width so wide runes in file
// names do not break the layout. Long paths are truncated on the left.
func renderFileTable(w io.Writer, files []sarif.MatchedFile, width int) {
	s := GetStyles()

	indexWidth := len(strconv.Itoa(len(files)))
	if indexWidth < 1 {
		indexWidth = 1
	}
	nameWidth := runewidth.StringWidth("FILE")
	for _, file := range files {
		if nw := runewidth.StringWidth(file.Name); nw > nameWidth {
			nameWidth = nw
		}
	}
	const maxName = 40
	if nameWidth > maxName {
		nameWidth = maxName
	}
	pathWidth := width - indexWidth - nameWidth - 4
	if pathWidth < 10 {
		pathWidth = 10
	}

	header := fmt.Sprintf("%s  %s  %s",
		runewidth.FillLeft("#", indexWidth),
		runewidth.FillRight("FILE", nameWidth),
		"PATH")
	fmt.Fprintln(w, s.TableHeader.Render(header))

	for i, file := range files {
		name := runewidth.Truncate(file.Name, nameWidth, "…")
		fmt.Fprintf(w, "%s  %s  %s\n",
			s.MutedText.Render(runewidth.FillLeft(strconv.Itoa(i+1), indexWidth)),
			s.Path.Render(runewidth.FillRight(name, nameWidth)),
			s.MutedText.Render(truncateLeft(file.Path, pathWidth)))
	}
}

// truncateLeft keeps the end of s, which is the informative part of a path.
func truncateLeft(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for i := range runes {
		tail := string(runes[i:])
		if runewidth.StringWidth(tail)+1 <= width {
			return "…" + tail
		}
	}
	return "…"
}

// FormatResult writes the run summary box.
func (f *HumanFormatter) FormatResult(w io.Writer, result *scan.Result) error {
	s := GetStyles()

	type row struct{ key, value string }
	var rows []row

	if result.Scan != nil {
		rows = append(rows,
			row{"Scan", s.ScanID.Render(result.Scan.ScanID)},
			row{"Project", result.Scan.ProjectID + " / " + result.Scan.BranchID})
	}

	files := fmt.Sprintf("%d uploaded", len(result.Files))
	if result.Truncated {
		files += fmt.Sprintf(" (%d skipped, file limit reached)", len(result.Skipped))
	}
	rows = append(rows, row{"Files", files})

	status := result.Status
	if status == "" {
		status = model.StatusError
	}
	rows = append(rows, row{"Status", s.StatusText(status).Render(StatusIcon(status) + " " + string(status))})
	if result.Message != "" {
		rows = append(rows, row{"Message", result.Message})
	}
	if result.ReportPath != "" {
		rows = append(rows, row{"Report", result.ReportPath})
	}
	if result.Scan != nil && result.Scan.ScanURL != "" {
		rows = append(rows, row{"Details", IconPointer + " " + s.Path.Render(result.Scan.ScanURL)})
	}
	rows = append(rows, row{"Elapsed", s.Duration.Render(scan.FormatElapsed(result.Elapsed))})

	keyWidth := 0
	for _, r := range rows {
		if kw := runewidth.StringWidth(r.key); kw > keyWidth {
			keyWidth = kw
		}
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, s.SummaryKey.Render(runewidth.FillRight(r.key, keyWidth))+"  "+r.value)
	}

	fmt.Fprintln(w, s.SummaryBox.Render(strings.Join(lines, "\n")))
	return nil
}
