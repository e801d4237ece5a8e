// Command mock-server runs a local scan service for trying armis-sarif by hand:
//
//	go run ./test -polls 3 -final Complete
//	armis-sarif upload --api-url http://localhost:8080 --token dev --project p --branch main
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ArmisSecurity/armis-sarif/internal/model"
)

const scanRoot = "/api/v1/projects/{project}/branches/{branch}/scans/{scan}"

type mockScan struct {
	model.Scan
	polls  int
	status model.ScanStatus
}

type server struct {
	pending int
	final   model.ScanStatus

	mu    sync.Mutex
	next  int
	scans map[string]*mockScan
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	pending := flag.Int("polls", 2, "status polls answered with Incomplete before the final status")
	final := flag.String("final", string(model.StatusComplete), "final status: Complete, Failed or Error")
	flag.Parse()

	s := &server{pending: *pending, final: model.ScanStatus(*final), scans: map[string]*mockScan{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/scans", s.requireAuth(s.handleCreate))
	mux.HandleFunc("POST "+scanRoot+"/results", s.requireAuth(s.handleUpload))
	mux.HandleFunc("GET "+scanRoot+"/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("PUT "+scanRoot+"/status", s.requireAuth(s.handleUpdateStatus))
	mux.HandleFunc("POST "+scanRoot+"/reports", s.requireAuth(s.handleReport))

	fmt.Printf("Mock Armis scan service running on http://localhost%s\n", *addr)
	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Fatal(httpServer.ListenAndServe())
}

func (s *server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, `{"detail":"missing authorization header"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *server) lookup(w http.ResponseWriter, r *http.Request) *mockScan {
	s.mu.Lock()
	scan, ok := s.scans[r.PathValue("scan")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"detail":"scan not found"}`, http.StatusNotFound)
		return nil
	}
	return scan
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.CreateScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.next++
	ids := model.ScanIDs{
		ProjectID: "proj-" + req.Project,
		BranchID:  "branch-" + req.Branch,
		ScanID:    fmt.Sprintf("scan-%d", s.next),
	}
	scan := &mockScan{
		Scan: model.Scan{
			ScanIDs:   ids,
			StatusURL: fmt.Sprintf("/api/v1/projects/%s/branches/%s/scans/%s/status", ids.ProjectID, ids.BranchID, ids.ScanID),
			ScanURL:   "http://localhost/scans/" + ids.ScanID,
		},
		status: model.StatusIncomplete,
	}
	s.scans[ids.ScanID] = scan
	s.mu.Unlock()

	log.Printf("created %s for %s@%s (tool %q)", ids.ScanID, req.Project, req.Branch, req.Tool)
	writeJSON(w, http.StatusCreated, scan.Scan)
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	scan := s.lookup(w, r)
	if scan == nil {
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, `{"detail":"invalid multipart body"}`, http.StatusBadRequest)
		return
	}
	for field, headers := range r.MultipartForm.File {
		for _, h := range headers {
			log.Printf("%s: received %s=%s (%d bytes)", scan.ScanID, field, h.Filename, h.Size)
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	scan := s.lookup(w, r)
	if scan == nil {
		return
	}

	s.mu.Lock()
	scan.polls++
	if scan.status == model.StatusIncomplete && scan.polls > s.pending {
		scan.status = s.final
	}
	resp := model.StatusResponse{Status: scan.status}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	scan := s.lookup(w, r)
	if scan == nil {
		return
	}
	var req model.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	scan.status = req.Status
	s.mu.Unlock()

	log.Printf("%s: client reported %s: %s", scan.ScanID, req.Status, req.Message)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	scan := s.lookup(w, r)
	if scan == nil {
		return
	}
	var req model.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"detail":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = fmt.Fprintf(w, "mock %s report for %s\n", req.Format, scan.ScanID)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
