package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/ArmisSecurity/armis-sarif/internal/api"
	"github.com/ArmisSecurity/armis-sarif/internal/logging"
	"github.com/ArmisSecurity/armis-sarif/internal/model"
	"github.com/ArmisSecurity/armis-sarif/internal/progress"
	"github.com/ArmisSecurity/armis-sarif/internal/sarif"
	"github.com/ArmisSecurity/armis-sarif/internal/util"
)

const (
	// statusUpdateTimeout bounds the best-effort error report. It runs on a
	// fresh context so it still goes out after an interrupt.
	statusUpdateTimeout = 30 * time.Second
	// maxStatusMessage caps the message sent with an Error status update.
	maxStatusMessage = 1024
)

// Remote is the subset of the service client used by a run.
type Remote interface {
	CreateScan(ctx context.Context, req model.CreateScanRequest) (*model.Scan, error)
	UploadResults(ctx context.Context, ids model.ScanIDs, body api.MultipartBody, truncated bool) error
	WaitForScan(ctx context.Context, statusURL string, opts api.PollOptions, onStatus func(*model.StatusResponse)) (*model.StatusResponse, error)
	UpdateStatus(ctx context.Context, ids model.ScanIDs, status model.ScanStatus, message string) error
	GenerateReport(ctx context.Context, ids model.ScanIDs, report model.ReportRequest, w io.Writer) (int64, error)
}

// Options configures a Runner.
type Options struct {
	Locate sarif.LocateOptions
	Scan   model.CreateScanRequest
	// Wait polls for a terminal status after the upload.
	Wait bool
	Poll api.PollOptions

	// ExportFormat requests a report after a Complete scan. Empty skips it.
	ExportFormat   string
	ExportFileType string
	ExportDir      string

	NoProgress bool
}

// Result summarizes a run.
type Result struct {
	Scan       *model.Scan         `json:"scan,omitempty"`
	Files      []sarif.MatchedFile `json:"files"`
	Skipped    []sarif.MatchedFile `json:"skipped,omitempty"`
	Truncated  bool                `json:"truncated"`
	Status     model.ScanStatus    `json:"status"`
	Message    string              `json:"message,omitempty"`
	ReportPath string              `json:"report_path,omitempty"`
	Elapsed    time.Duration       `json:"elapsed_ns"`
}

// Runner drives one discover, create, upload and wait cycle.
type Runner struct {
	remote Remote
	logger logging.Logger
	opts   Options
}

// NewRunner creates a Runner. A nil logger discards output.
func NewRunner(remote Remote, logger logging.Logger, opts Options) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Locate.Logger == nil {
		opts.Locate.Logger = logger
	}
	if opts.ExportFileType == "" {
		opts.ExportFileType = model.DefaultReportFileType
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	return &Runner{remote: remote, logger: logger, opts: opts}
}

// Run executes the pipeline. Discovery and preparation errors are returned
// before the service is contacted. A poll timeout is not an error: it yields
// a Result with StatusTimeout. Errors after the scan was created are reported
// to the service with an Error status before they are returned, as is a scan
// the service itself finished with Error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}
	defer func() { result.Elapsed = time.Since(start) }()

	found, err := sarif.Locate(r.opts.Locate)
	if err != nil {
		return nil, err
	}
	result.Files = found.Files
	result.Skipped = found.Skipped
	result.Truncated = found.Truncated

	payload, err := sarif.Prepare(found.Files, r.opts.Locate.Root, sarif.WithProgress(r.progressReader))
	if err != nil {
		return nil, err
	}
	r.logger.Infof("uploading %d %s (%s)", payload.Len(), util.Plural(payload.Len(), "file", "files"), util.FormatBytes(payload.Size()))

	scan, err := r.remote.CreateScan(ctx, r.opts.Scan)
	if err != nil {
		return nil, err
	}
	result.Scan = scan
	logger := r.logger.With("scan_id", scan.ScanID)
	logger.Infof("created scan %s", scan.ScanID)

	done := logging.LogOperation(logger, "upload")
	if err := r.remote.UploadResults(ctx, scan.ScanIDs, payload, found.Truncated); err != nil {
		r.reportError(logger, scan.ScanIDs, err)
		return result, err
	}
	done()

	if !r.opts.Wait {
		result.Status = model.StatusSubmitted
		logger.Infof("results submitted, not waiting for analysis")
		return result, nil
	}

	status, err := r.wait(ctx, scan)
	if status != nil {
		result.Status = status.Status
		result.Message = status.Message
	}
	switch {
	case errors.Is(err, api.ErrPollTimeout):
		logger.Warnf("%v", err)
		result.Status = model.StatusTimeout
		result.Message = err.Error()
	case err != nil:
		r.reportError(logger, scan.ScanIDs, err)
		return result, err
	}
	logger.Infof("scan finished with status %s", result.Status)
	if result.Status == model.StatusError {
		r.reportError(logger, scan.ScanIDs, remoteStatusError(result))
	}

	if result.Status == model.StatusComplete && r.opts.ExportFormat != "" {
		path, err := r.export(ctx, scan.ScanIDs)
		if err != nil {
			logger.Warnf("report export failed: %v", err)
		} else {
			result.ReportPath = path
			logger.Infof("report written to %s", path)
		}
	}

	return result, nil
}

func (r *Runner) progressReader(rd io.Reader, size int64, description string) io.Reader {
	return progress.NewReader(rd, size, description, r.opts.NoProgress)
}

func (r *Runner) wait(ctx context.Context, scan *model.Scan) (*model.StatusResponse, error) {
	spinner := progress.NewSpinnerWithContext(ctx, FormatScanStatus(model.StatusIncomplete), r.opts.NoProgress)
	spinner.Start()
	defer spinner.Stop()

	return r.remote.WaitForScan(ctx, scan.StatusURL, r.opts.Poll, func(status *model.StatusResponse) {
		spinner.Update(FormatScanStatus(status.Status))
	})
}

// reportError tells the service that the run failed. Its own failure is only
// logged.
func (r *Runner) reportError(logger logging.Logger, ids model.ScanIDs, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), statusUpdateTimeout)
	defer cancel()

	message := truncateMessage(util.MaskSecretInLine(cause.Error()), maxStatusMessage)
	if err := r.remote.UpdateStatus(ctx, ids, model.StatusError, message); err != nil {
		logger.Warnf("could not report failure to the service: %v", err)
		return
	}
	logger.Debugf("reported %s status to the service", model.StatusError)
}

func remoteStatusError(result *Result) error {
	if result.Message == "" {
		return fmt.Errorf("scan reported status %s", result.Status)
	}
	return fmt.Errorf("scan reported status %s: %s", result.Status, result.Message)
}

// truncateMessage cuts s to at most limit bytes without splitting a UTF-8
// sequence.
func truncateMessage(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ReportFileName returns the export file name for a scan.
func ReportFileName(scanID, format, fileType string) string {
	return fmt.Sprintf("scan-%s-%s.%s", util.SafeFileName(scanID), format, fileType)
}

// export streams the report into a temporary file next to its destination
// and renames it into place once complete.
func (r *Runner) export(ctx context.Context, ids model.ScanIDs) (string, error) {
	if err := os.MkdirAll(r.opts.ExportDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(r.opts.ExportDir, ".armis-report-*")
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	req := model.ReportRequest{Format: r.opts.ExportFormat, FileType: r.opts.ExportFileType}
	w := progress.NewWriter(tmp, -1, "Downloading report", r.opts.NoProgress)
	n, err := r.remote.GenerateReport(ctx, ids, req, w)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write report: %w", closeErr)
	}
	if err != nil {
		return "", err
	}

	dest := filepath.Join(r.opts.ExportDir, ReportFileName(ids.ScanID, req.Format, req.FileType))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	r.logger.Debugf("wrote %s report (%s)", req.Format, util.FormatBytes(n))
	return dest, nil
}
