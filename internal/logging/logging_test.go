package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		want    string
		wantErr bool
	}{
		{"empty defaults to info", "", "info", false},
		{"debug", "debug", "debug", false},
		{"upper case", "WARN", "warn", false},
		{"warning alias", "warning", "warn", false},
		{"error", "error", "error", false},
		{"trace rejected", "trace", "", true},
		{"garbage rejected", "loud", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.level)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLevel(%q) expected error", tt.level)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) unexpected error: %v", tt.level, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.level, got, tt.want)
			}
		})
	}
}

func TestNewRespectsMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "warn", NoColor: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	logger.Warnf("warn %d", 3)
	logger.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("entries below warn should be dropped, got:\n%s", out)
	}
	if !strings.Contains(out, "warn 3") || !strings.Contains(out, "error 4") {
		t.Errorf("expected warn and error entries, got:\n%s", out)
	}
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, Options{Level: "verbose"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewJSON(&buf, "info")
	if err != nil {
		t.Fatalf("NewJSON failed: %v", err)
	}

	logger.With("scan_id", "scan-1").Infof("uploaded %d files", 3)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["scan_id"] != "scan-1" {
		t.Errorf("expected scan_id field, got %v", entry["scan_id"])
	}
	if entry["message"] != "uploaded 3 files" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("unexpected level: %v", entry["level"])
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Errorf("nothing %s", "happens")
	logger.With("k", "v").Infof("still nothing")
}

func TestLogOperation(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Options{Level: "debug", NoColor: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := LogOperation(logger, "discovery")
	done()

	out := buf.String()
	if !strings.Contains(out, "discovery started") {
		t.Errorf("missing start entry: %s", out)
	}
	if !strings.Contains(out, "discovery completed in") {
		t.Errorf("missing completion entry: %s", out)
	}
}
