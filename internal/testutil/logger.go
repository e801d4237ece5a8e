package testutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ArmisSecurity/armis-sarif/internal/logging"
)

// Entry is one recorded log line.
type Entry struct {
	Level   string
	Message string
}

// RecordingLogger captures entries for assertions. It implements logging.Logger.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []Entry
	prefix  string
	parent  *RecordingLogger
}

// NewRecordingLogger creates an empty recorder.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (r *RecordingLogger) record(level, format string, args ...interface{}) {
	root := r
	if r.parent != nil {
		root = r.parent
	}
	root.mu.Lock()
	defer root.mu.Unlock()
	root.entries = append(root.entries, Entry{Level: level, Message: r.prefix + fmt.Sprintf(format, args...)})
}

// Debugf records a debug entry.
func (r *RecordingLogger) Debugf(format string, args ...interface{}) {
	r.record("debug", format, args...)
}

// Infof records an info entry.
func (r *RecordingLogger) Infof(format string, args ...interface{}) {
	r.record("info", format, args...)
}

// Warnf records a warn entry.
func (r *RecordingLogger) Warnf(format string, args ...interface{}) {
	r.record("warn", format, args...)
}

// Errorf records an error entry.
func (r *RecordingLogger) Errorf(format string, args ...interface{}) {
	r.record("error", format, args...)
}

// With returns a child recorder that prefixes messages with key=value.
func (r *RecordingLogger) With(key, value string) logging.Logger {
	root := r
	if r.parent != nil {
		root = r.parent
	}
	return &RecordingLogger{parent: root, prefix: r.prefix + key + "=" + value + " "}
}

// Entries returns a snapshot of all recorded entries.
func (r *RecordingLogger) Entries() []Entry {
	root := r
	if r.parent != nil {
		root = r.parent
	}
	root.mu.Lock()
	defer root.mu.Unlock()
	out := make([]Entry, len(root.entries))
	copy(out, root.entries)
	return out
}

// Contains reports whether any entry at level contains substr.
// An empty level matches all levels.
func (r *RecordingLogger) Contains(level, substr string) bool {
	for _, e := range r.Entries() {
		if (level == "" || e.Level == level) && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
