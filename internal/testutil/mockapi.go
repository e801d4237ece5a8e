package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ArmisSecurity/armis-sarif/internal/model"
)

// MockScanConfig configures the mock scan service.
type MockScanConfig struct {
	// Scan is returned by create-scan. Empty identifiers get defaults.
	Scan model.Scan
	// Statuses are returned by successive status polls; the last one repeats.
	// Defaults to [Complete].
	Statuses []model.ScanStatus
	// StatusMessage accompanies every status response.
	StatusMessage string
	// Non-zero codes make the matching endpoint fail.
	CreateStatusCode int
	UploadStatusCode int
	StatusCode       int
	ReportStatusCode int
	// Report is the body returned by generate-report.
	Report []byte
}

// UploadedFile is one file part received by the mock.
type UploadedFile struct {
	Name    string
	Content string
}

// Upload is one upload-result request received by the mock.
type Upload struct {
	Files  map[string]UploadedFile
	Fields map[string]string
}

// MockScanService is an in-process scan service recording every call.
type MockScanService struct {
	Server *httptest.Server
	URL    string
	config MockScanConfig

	mu            sync.Mutex
	created       []model.CreateScanRequest
	uploads       []Upload
	polls         int
	statusUpdates []model.UpdateStatusRequest
	reports       []model.ReportRequest
	authHeaders   []string
	userAgents    []string
}

// NewMockScanService starts a mock scan service that is closed with the test.
func NewMockScanService(t *testing.T, config MockScanConfig) *MockScanService {
	t.Helper()

	if config.Scan.ProjectID == "" {
		config.Scan.ProjectID = "proj-1"
	}
	if config.Scan.BranchID == "" {
		config.Scan.BranchID = "branch-1"
	}
	if config.Scan.ScanID == "" {
		config.Scan.ScanID = "scan-1"
	}
	if config.Scan.StatusURL == "" {
		config.Scan.StatusURL = "/api/v1/projects/" + config.Scan.ProjectID + "/branches/" +
			config.Scan.BranchID + "/scans/" + config.Scan.ScanID + "/status"
	}
	if len(config.Statuses) == 0 {
		config.Statuses = []model.ScanStatus{model.StatusComplete}
	}
	if config.Report == nil {
		config.Report = []byte("%PDF-1.4 mock report")
	}

	m := &MockScanService{config: config}

	const scanRoot = "/api/v1/projects/{project}/branches/{branch}/scans/{scan}"
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/scans", m.handleCreate(t))
	mux.HandleFunc("POST "+scanRoot+"/results", m.handleUpload(t))
	mux.HandleFunc("GET "+scanRoot+"/status", m.handleStatus(t))
	mux.HandleFunc("PUT "+scanRoot+"/status", m.handleUpdateStatus(t))
	mux.HandleFunc("POST "+scanRoot+"/reports", m.handleReport(t))

	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.authHeaders = append(m.authHeaders, r.Header.Get("Authorization"))
		m.userAgents = append(m.userAgents, r.Header.Get("User-Agent"))
		m.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	m.URL = m.Server.URL
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockScanService) handleCreate(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.CreateScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		m.mu.Lock()
		m.created = append(m.created, req)
		m.mu.Unlock()

		if m.config.CreateStatusCode != 0 {
			writeDetail(w, m.config.CreateStatusCode, "create scan rejected")
			return
		}
		WriteJSON(t, w, http.StatusCreated, m.config.Scan)
	}
}

func (m *MockScanService) handleUpload(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid multipart body")
			return
		}

		upload := Upload{Files: map[string]UploadedFile{}, Fields: map[string]string{}}
		for field, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				upload.Fields[field] = values[0]
			}
		}
		for field, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			f, err := headers[0].Open()
			if err != nil {
				t.Errorf("mock: failed to open part %s: %v", field, err)
				continue
			}
			data, _ := io.ReadAll(f)
			_ = f.Close()
			upload.Files[field] = UploadedFile{Name: headers[0].Filename, Content: string(data)}
		}

		m.mu.Lock()
		m.uploads = append(m.uploads, upload)
		m.mu.Unlock()

		if m.config.UploadStatusCode != 0 {
			writeDetail(w, m.config.UploadStatusCode, "upload rejected")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (m *MockScanService) handleStatus(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		m.mu.Lock()
		idx := m.polls
		m.polls++
		m.mu.Unlock()

		if m.config.StatusCode != 0 {
			writeDetail(w, m.config.StatusCode, "status unavailable")
			return
		}
		if idx >= len(m.config.Statuses) {
			idx = len(m.config.Statuses) - 1
		}
		WriteJSON(t, w, http.StatusOK, model.StatusResponse{
			Status:  m.config.Statuses[idx],
			Message: m.config.StatusMessage,
		})
	}
}

func (m *MockScanService) handleUpdateStatus(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		m.mu.Lock()
		m.statusUpdates = append(m.statusUpdates, req)
		m.mu.Unlock()
		WriteJSON(t, w, http.StatusOK, map[string]string{"status": string(req.Status)})
	}
}

func (m *MockScanService) handleReport(_ *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.ReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		m.mu.Lock()
		m.reports = append(m.reports, req)
		m.mu.Unlock()

		if m.config.ReportStatusCode != 0 {
			writeDetail(w, m.config.ReportStatusCode, "report unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(m.config.Report)
	}
}

// Scan returns the scan the mock hands out.
func (m *MockScanService) Scan() model.Scan {
	return m.config.Scan
}

// Created returns the received create-scan requests.
func (m *MockScanService) Created() []model.CreateScanRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.CreateScanRequest(nil), m.created...)
}

// Uploads returns the received uploads.
func (m *MockScanService) Uploads() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Upload(nil), m.uploads...)
}

// Polls returns how many status requests were served.
func (m *MockScanService) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

// StatusUpdates returns the received status updates.
func (m *MockScanService) StatusUpdates() []model.UpdateStatusRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.UpdateStatusRequest(nil), m.statusUpdates...)
}

// Reports returns the received report requests.
func (m *MockScanService) Reports() []model.ReportRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ReportRequest(nil), m.reports...)
}

// Requests returns how many requests reached the service.
func (m *MockScanService) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.authHeaders)
}

// AuthHeaders returns the Authorization header of every request.
func (m *MockScanService) AuthHeaders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.authHeaders...)
}

// UserAgents returns the User-Agent header of every request.
func (m *MockScanService) UserAgents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.userAgents...)
}

// NewServer starts a server for a single handler, closed with the test.
func NewServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// WriteJSON writes v as a JSON response body with the given status code.
func WriteJSON(t *testing.T, w http.ResponseWriter, statusCode int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("mock: failed to encode response: %v", err)
	}
}

// writeDetail writes an error body in the service's {"detail": "..."} shape.
func writeDetail(w http.ResponseWriter, statusCode int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
