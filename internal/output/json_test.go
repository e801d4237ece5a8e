package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ArmisSecurity/armis-sarif/internal/cli"
	"github.com/ArmisSecurity/armis-sarif/internal/model"
	"github.com/ArmisSecurity/armis-sarif/internal/sarif"
	"github.com/ArmisSecurity/armis-sarif/internal/scan"
)

func testResult() *scan.Result {
	return &scan.Result{
		Scan: &model.Scan{
			ScanIDs:   model.ScanIDs{ProjectID: "proj-1", BranchID: "branch-1", ScanID: "scan-1"},
			StatusURL: "/status",
			ScanURL:   "https://app.example.com/scans/scan-1",
		},
		Files:      []sarif.MatchedFile{{Name: "a.sarif", Path: "/repo/a.sarif"}},
		Skipped:    []sarif.MatchedFile{{Name: "b.sarif", Path: "/repo/b.sarif"}},
		Truncated:  true,
		Status:     model.StatusComplete,
		ReportPath: "scan-scan-1-summary.pdf",
		Elapsed:    125 * time.Second,
	}
}

func TestJSONFormatter_FormatResult(t *testing.T) {
	cli.InitColors(cli.ColorModeNever)
	SyncColors()

	var buf bytes.Buffer
	if err := (&JSONFormatter{}).FormatResult(&buf, testResult()); err != nil {
		t.Fatalf("FormatResult failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded["status"] != "Complete" {
		t.Errorf("status = %v", decoded["status"])
	}
	if decoded["elapsed"] != "2m 5s" {
		t.Errorf("elapsed = %v", decoded["elapsed"])
	}
	if decoded["truncated"] != true {
		t.Errorf("truncated = %v", decoded["truncated"])
	}
	scanObj, ok := decoded["scan"].(map[string]interface{})
	if !ok || scanObj["scan_id"] != "scan-1" {
		t.Errorf("scan = %v", decoded["scan"])
	}
}

func TestJSONFormatter_FormatDiscovery(t *testing.T) {
	cli.InitColors(cli.ColorModeNever)
	SyncColors()

	var buf bytes.Buffer
	result := &sarif.DiscoveryResult{Files: []sarif.MatchedFile{{Name: "a.sarif", Path: "/repo/a.sarif"}}}
	if err := (&JSONFormatter{}).FormatDiscovery(&buf, result); err != nil {
		t.Fatalf("FormatDiscovery failed: %v", err)
	}

	var decoded sarif.DiscoveryResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Files) != 1 || decoded.Files[0].Name != "a.sarif" {
		t.Errorf("unexpected files: %+v", decoded.Files)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("JSON to a buffer should not be highlighted")
	}
}

func TestJSONFormatter_HighlightsWhenForced(t *testing.T) {
	cli.InitColors(cli.ColorModeAlways)
	SyncColors()
	defer func() {
		cli.InitColors(cli.ColorModeNever)
		SyncColors()
	}()

	var buf bytes.Buffer
	if err := (&JSONFormatter{}).FormatResult(&buf, testResult()); err != nil {
		t.Fatalf("FormatResult failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Error("expected highlighted JSON with --color=always")
	}
}
