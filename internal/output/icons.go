package output

import "github.com/ArmisSecurity/armis-sarif/internal/model"

// Status icons
const (
	IconSuccess = "✓"
	IconFailure = "✗"
	IconWarning = "!"
	IconPending = "…"
	IconPointer = "►"
	IconUpdate  = "📦"
)

// StatusIcon returns the icon shown next to a final scan status.
func StatusIcon(status model.ScanStatus) string {
	switch status {
	case model.StatusComplete, model.StatusSubmitted:
		return IconSuccess
	case model.StatusFailed, model.StatusError:
		return IconFailure
	case model.StatusTimeout:
		return IconWarning
	default:
		return IconPending
	}
}
