// Package scan orchestrates an upload run and maps its outcome to an exit code.
package scan

import (
	"fmt"
	"strings"
	"time"

	"github.com/ArmisSecurity/armis-sarif/internal/model"
)

// OnFailure decides whether a non-clean scan fails the build.
type OnFailure string

const (
	FailTheBuild      OnFailure = "fail_the_build"
	ContinueOnFailure OnFailure = "continue_on_failure"
)

// OnFailurePolicies lists the accepted --on-failure values.
var OnFailurePolicies = []string{string(FailTheBuild), string(ContinueOnFailure)}

// ParseOnFailure parses an --on-failure value, accepting dashes for underscores.
func ParseOnFailure(s string) (OnFailure, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch OnFailure(normalized) {
	case FailTheBuild, ContinueOnFailure:
		return OnFailure(normalized), nil
	}
	return "", fmt.Errorf("invalid on-failure policy %q: must be one of %v", s, OnFailurePolicies)
}

// ExitCode maps a final status to a process exit code. Complete and Submitted
// always exit 0. Failed, Error and Timeout exit failureCode under
// FailTheBuild and 0 under ContinueOnFailure.
func ExitCode(status model.ScanStatus, policy OnFailure, failureCode int) int {
	if status.IsSuccess() {
		return 0
	}
	if policy == ContinueOnFailure {
		return 0
	}
	if failureCode < 1 {
		return 1
	}
	return failureCode
}

// FormatScanStatus returns a human-readable message for the current scan phase.
func FormatScanStatus(status model.ScanStatus) string {
	switch status {
	case model.StatusIncomplete:
		return "Analysis in progress..."
	case model.StatusComplete:
		return "Analysis completed"
	case model.StatusFailed:
		return "Analysis failed"
	case model.StatusError:
		return "Analysis encountered an error"
	case model.StatusTimeout:
		return "Timed out waiting for analysis"
	case model.StatusSubmitted:
		return "Results submitted, not waiting for analysis"
	default:
		return fmt.Sprintf("Waiting for analysis... [%s]", strings.ToUpper(string(status)))
	}
}

// FormatElapsed formats a duration as a human-readable time string.
// Examples: "45s", "2m 30s"
func FormatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
