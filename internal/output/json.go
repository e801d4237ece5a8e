package output

import (
	"encoding/json"
	"io"

	"github.com/ArmisSecurity/armis-sarif/internal/sarif"
	"github.com/ArmisSecurity/armis-sarif/internal/scan"
)

// JSONFormatter formats results as indented JSON, highlighted when written
// to a color terminal.
type JSONFormatter struct{}

// FormatDiscovery writes the discovery result as JSON.
func (f *JSONFormatter) FormatDiscovery(w io.Writer, result *sarif.DiscoveryResult) error {
	return f.write(w, result)
}

// jsonResult adds derived fields to a scan.Result.
type jsonResult struct {
	*scan.Result
	ElapsedText string `json:"elapsed"`
}

// FormatResult writes the run result as JSON.
func (f *JSONFormatter) FormatResult(w io.Writer, result *scan.Result) error {
	return f.write(w, jsonResult{Result: result, ElapsedText: scan.FormatElapsed(result.Elapsed)})
}

func (f *JSONFormatter) write(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if ColorTerminal(w) {
		_, err = io.WriteString(w, HighlightJSON(data))
		return err
	}
	_, err = w.Write(data)
	return err
}
