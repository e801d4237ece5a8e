// Package api implements the client for the scan service: scan creation,
// result upload, status polling, status updates and report generation.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ArmisSecurity/armis-sarif/internal/httpclient"
	"github.com/ArmisSecurity/armis-sarif/internal/logging"
	"github.com/ArmisSecurity/armis-sarif/internal/model"
)

const (
	defaultUploadTimeout  = 10 * time.Minute
	defaultRequestTimeout = 2 * time.Minute
	// maxErrorBody bounds how much of a failed response ends up in an error.
	maxErrorBody = 4096
	// TruncatedField carries whether discovery dropped files over the cap.
	TruncatedField = "truncated"
)

// AuthHeaderProvider supplies the Authorization header value.
type AuthHeaderProvider interface {
	GetAuthorizationHeader(ctx context.Context) (string, error)
}

// MultipartBody writes the upload parts into a multipart writer.
type MultipartBody interface {
	WriteMultipart(mw *multipart.Writer) error
	Len() int
	Size() int64
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to the scan service.
type Client struct {
	httpClient     *httpclient.Client
	baseURL        string
	base           *url.URL
	authProvider   AuthHeaderProvider
	logger         logging.Logger
	uploadTimeout  time.Duration
	requestTimeout time.Duration
	userAgent      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default retrying HTTP client.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithUserAgent sets the User-Agent sent with every request.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		client.userAgent = ua
	}
}

// WithRequestTimeout bounds every call except the upload and report download.
func WithRequestTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.requestTimeout = d
	}
}

// NewClient creates a client for baseURL. HTTPS is required unless the host
// is localhost or 127.0.0.1. A zero uploadTimeout means 10 minutes.
func NewClient(baseURL string, authProvider AuthHeaderProvider, logger logging.Logger, uploadTimeout time.Duration, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: scheme and host required", baseURL)
	}
	if parsed.Scheme != "https" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return nil, fmt.Errorf("HTTPS required for non-localhost API URL")
		}
	}
	if authProvider == nil {
		return nil, fmt.Errorf("auth provider is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if uploadTimeout == 0 {
		uploadTimeout = defaultUploadTimeout
	}

	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		authProvider:   authProvider,
		logger:         logger,
		uploadTimeout:  uploadTimeout,
		requestTimeout: defaultRequestTimeout,
		userAgent:      "armis-sarif/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		// Deadlines come from per-call contexts so long uploads are not cut off.
		c.httpClient = httpclient.NewClient(httpclient.Config{
			DisableTimeout: true,
			OnRetry: func(err error, wait time.Duration) {
				logger.Debugf("request failed, retrying in %s: %v", wait.Round(time.Millisecond), err)
			},
		})
	}
	c.base, _ = url.Parse(c.baseURL)

	return c, nil
}

// BaseURL returns the normalized service URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func scanPath(ids model.ScanIDs, suffix string) string {
	return "/api/v1/projects/" + url.PathEscape(ids.ProjectID) +
		"/branches/" + url.PathEscape(ids.BranchID) +
		"/scans/" + url.PathEscape(ids.ScanID) + suffix
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	authHeader, err := c.authProvider.GetAuthorizationHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization header: %w", err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// checkResponse turns a non-2xx response into a StatusError.
func checkResponse(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// doJSON sends in as a JSON body and decodes the response into out when out
// is not nil.
func (c *Client) doJSON(ctx context.Context, method, target, op string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debugf("%s %s", method, req.URL.Redacted())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // response body read-only

	if err := checkResponse(resp, op); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// CreateScan registers a scan and returns its identifiers.
func (c *Client) CreateScan(ctx context.Context, req model.CreateScanRequest) (*model.Scan, error) {
	var scan model.Scan
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v1/scans", "create scan", req, &scan); err != nil {
		return nil, fmt.Errorf("failed to create scan: %w", err)
	}
	if !scan.Valid() {
		return nil, fmt.Errorf("failed to create scan: response is missing scan identifiers")
	}
	if scan.StatusURL == "" {
		scan.StatusURL = scanPath(scan.ScanIDs, "/status")
	}
	return &scan, nil
}

// UploadResults streams body as multipart form data, followed by the
// truncated field. The body is produced while it is sent, so the request is
// never retried. A failure reading a local file takes precedence over the
// transport error it causes.
func (c *Client) UploadResults(ctx context.Context, ids model.ScanIDs, body MultipartBody, truncated bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+scanPath(ids, "/results"), pr)
	if err != nil {
		_ = pr.Close()
		return fmt.Errorf("failed to upload results: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	writeErr := make(chan error, 1)
	go func() {
		err := body.WriteMultipart(mw)
		if err == nil {
			err = mw.WriteField(TruncatedField, strconv.FormatBool(truncated))
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
		writeErr <- err
	}()

	c.logger.Debugf("uploading %d files (%d bytes) to scan %s", body.Len(), body.Size(), ids.ScanID)
	resp, doErr := c.httpClient.Do(req)
	// Unblocks the writer if the transport stopped reading early.
	_ = pr.Close()
	wErr := <-writeErr

	if resp != nil {
		defer resp.Body.Close() //nolint:errcheck // response body read-only
	}
	if wErr != nil && !errors.Is(wErr, io.ErrClosedPipe) {
		return fmt.Errorf("failed to upload results: %w", wErr)
	}
	if doErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("failed to upload results: upload timed out after %s: %w", c.uploadTimeout, doErr)
		}
		return fmt.Errorf("failed to upload results: %w", doErr)
	}
	if err := checkResponse(resp, "upload"); err != nil {
		return fmt.Errorf("failed to upload results: %w", err)
	}
	return nil
}

// resolveStatusURL resolves a relative status URL against the base URL. An
// absolute URL must point at the same scheme and host, so credentials are
// never sent elsewhere.
func (c *Client) resolveStatusURL(statusURL string) (string, error) {
	if statusURL == "" {
		return "", fmt.Errorf("status URL is empty")
	}
	u, err := url.Parse(statusURL)
	if err != nil {
		return "", fmt.Errorf("invalid status URL: %w", err)
	}
	if !u.IsAbs() {
		return c.base.ResolveReference(u).String(), nil
	}
	if !strings.EqualFold(u.Scheme, c.base.Scheme) || !strings.EqualFold(u.Host, c.base.Host) {
		return "", fmt.Errorf("status URL host %s does not match API host %s", u.Host, c.base.Host)
	}
	return u.String(), nil
}

// GetStatus fetches the current scan status.
func (c *Client) GetStatus(ctx context.Context, statusURL string) (*model.StatusResponse, error) {
	target, err := c.resolveStatusURL(statusURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan status: %w", err)
	}

	var status model.StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, target, "get status", nil, &status); err != nil {
		return nil, fmt.Errorf("failed to get scan status: %w", err)
	}
	status.Status = model.ParseScanStatus(string(status.Status))
	return &status, nil
}

// UpdateStatus reports a client-side status, usually Error, for the scan.
func (c *Client) UpdateStatus(ctx context.Context, ids model.ScanIDs, status model.ScanStatus, message string) error {
	req := model.UpdateStatusRequest{Status: status, Message: message}
	if err := c.doJSON(ctx, http.MethodPut, c.baseURL+scanPath(ids, "/status"), "update status", req, nil); err != nil {
		return fmt.Errorf("failed to update scan status: %w", err)
	}
	return nil
}

// GenerateReport requests a formatted report and streams it into w.
func (c *Client) GenerateReport(ctx context.Context, ids model.ScanIDs, report model.ReportRequest, w io.Writer) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	data, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+scanPath(ids, "/reports"), bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to generate report: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to generate report: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body read-only

	if err := checkResponse(resp, "generate report"); err != nil {
		return 0, fmt.Errorf("failed to generate report: %w", err)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to download report: %w", err)
	}
	return n, nil
}
