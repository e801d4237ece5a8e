package cmd

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ArmisSecurity/armis-sarif/internal/sarif"
)

func TestDiscoverJSON(t *testing.T) {
	withConfig(t)
	root := sarifDir(t, "b.sarif", "a/results.sarif.json", "node_modules/dep/x.sarif", "notes.txt")

	out, err := executeCommand(t, "discover", "--root", root, "--format", "json", "--color", "never", "--no-update-check")
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	var result sarif.DiscoveryResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(result.Files) != 2 {
		t.Fatalf("expected 2 files, got %+v", result.Files)
	}
	if result.Files[0].Name != "results.sarif.json" || result.Files[1].Name != "b.sarif" {
		t.Errorf("files not in walk order: %+v", result.Files)
	}
	if result.Truncated {
		t.Error("result should not be truncated")
	}
}

func TestDiscoverHumanTruncated(t *testing.T) {
	withConfig(t)
	root := sarifDir(t, "1.sarif", "2.sarif", "3.sarif")

	out, err := executeCommand(t, "discover", "--root", root, "--max-files", "2", "--color", "never", "--no-update-check")
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if !strings.Contains(out, "Found 2 SARIF files") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "1 more file skipped: file limit reached") {
		t.Errorf("missing truncation notice:\n%s", out)
	}
}

func TestDiscoverNoInput(t *testing.T) {
	withConfig(t)
	root := sarifDir(t, "notes.txt")

	_, err := executeCommand(t, "discover", "--root", root, "--color", "never", "--no-update-check")
	if !errors.Is(err, sarif.ErrNoInput) {
		t.Errorf("expected sarif.ErrNoInput, got %v", err)
	}
}
