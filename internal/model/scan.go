// Package model defines the wire types exchanged with the scan service.
package model

import "strings"

// ScanStatus is the lifecycle state of a remote scan.
type ScanStatus string

const (
	StatusIncomplete ScanStatus = "Incomplete"
	StatusComplete   ScanStatus = "Complete"
	StatusFailed     ScanStatus = "Failed"
	StatusError      ScanStatus = "Error"

	// Local states, never sent by the service.
	StatusTimeout   ScanStatus = "Timeout"
	StatusSubmitted ScanStatus = "Submitted"
)

// ParseScanStatus normalizes a status string from the service. Unknown values
// are kept verbatim so they are reported rather than silently dropped.
func ParseScanStatus(s string) ScanStatus {
	for _, known := range []ScanStatus{StatusIncomplete, StatusComplete, StatusFailed, StatusError, StatusTimeout, StatusSubmitted} {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return ScanStatus(s)
}

// IsTerminal reports whether the service will not change the status again.
func (s ScanStatus) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusFailed, StatusError:
		return true
	}
	return false
}

// IsSuccess reports whether the status counts as a clean result.
func (s ScanStatus) IsSuccess() bool {
	return s == StatusComplete || s == StatusSubmitted
}

type CreateScanRequest struct {
	Project   string `json:"project"`
	Branch    string `json:"branch"`
	BuildID   string `json:"build_id,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
	Tool      string `json:"tool,omitempty"`
}

// ScanIDs addresses a scan in project/branch/scan path segments.
type ScanIDs struct {
	ProjectID string `json:"project_id"`
	BranchID  string `json:"branch_id"`
	ScanID    string `json:"scan_id"`
}

// Valid reports whether every identifier is set.
func (ids ScanIDs) Valid() bool {
	return ids.ProjectID != "" && ids.BranchID != "" && ids.ScanID != ""
}

type Scan struct {
	ScanIDs
	StatusURL string `json:"status_url"`
	ScanURL   string `json:"scan_url,omitempty"`
}

type StatusResponse struct {
	Status  ScanStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

type UpdateStatusRequest struct {
	Status  ScanStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// Report formats accepted by the service.
const (
	ReportSummary    = "summary"
	ReportDetailed   = "detailed"
	ReportCompliance = "compliance"

	DefaultReportFileType = "pdf"
)

// ReportFormats and ReportFileTypes list the accepted values in help order.
var (
	ReportFormats   = []string{ReportSummary, ReportDetailed, ReportCompliance}
	ReportFileTypes = []string{"pdf", "html", "csv", "json"}
)

type ReportRequest struct {
	Format   string `json:"format"`
	FileType string `json:"file_type"`
}
