// Package progress renders upload progress bars and wait spinners on stderr.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// IsCI reports whether a well-known CI environment variable is set.
func IsCI() bool {
	ciEnvVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"CIRCLECI",
		"JENKINS_URL",
		"TRAVIS",
		"BITBUCKET_BUILD_NUMBER",
		"AZURE_PIPELINES",
		"TF_BUILD",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return true
		}
	}
	return false
}

// NewReader wraps r with a byte progress bar unless disabled or in CI.
func NewReader(r io.Reader, size int64, description string, disabled bool) io.Reader {
	if disabled || IsCI() {
		return r
	}

	bar := progressbar.DefaultBytes(
		size,
		description,
	)

	reader := progressbar.NewReader(r, bar)
	return &reader
}

// NewWriter tees w into a byte progress bar unless disabled or in CI. A
// negative size renders an indeterminate bar.
func NewWriter(w io.Writer, size int64, description string, disabled bool) io.Writer {
	if disabled || IsCI() {
		return w
	}

	bar := progressbar.DefaultBytes(
		size,
		description,
	)

	return io.MultiWriter(w, bar)
}

// Spinner is an indeterminate indicator shown while waiting on the service.
// A disabled spinner only tracks elapsed time.
type Spinner struct {
	ctx      context.Context
	message  string
	disabled bool
	writer   io.Writer
	start    time.Time

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	done     chan struct{}
	stopOnce sync.Once
}

// NewSpinner creates a spinner writing to stderr.
func NewSpinner(message string, disabled bool) *Spinner {
	return NewSpinnerWithContext(context.Background(), message, disabled)
}

// NewSpinnerWithContext creates a spinner that stops animating when ctx is done.
func NewSpinnerWithContext(ctx context.Context, message string, disabled bool) *Spinner {
	return &Spinner{
		ctx:      ctx,
		message:  message,
		disabled: disabled || IsCI(),
		writer:   os.Stderr,
		start:    time.Now(),
		done:     make(chan struct{}),
	}
}

// SetWriter redirects output. It must be called before Start.
func (s *Spinner) SetWriter(w io.Writer) {
	s.writer = w
}

// Start begins animating the spinner.
func (s *Spinner) Start() {
	if s.disabled {
		return
	}

	s.mu.Lock()
	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.writer),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription(s.message),
		progressbar.OptionClearOnFinish(),
	)
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				s.bar.Describe(s.message + " " + formatDuration(time.Since(s.start)))
				_ = s.bar.Add(1)
				s.mu.Unlock()
			}
		}
	}()
}

// Update replaces the spinner message.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// GetElapsed returns the time since the spinner was created.
func (s *Spinner) GetElapsed() time.Duration {
	return time.Since(s.start)
}

// Stop halts and clears the spinner. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.bar != nil {
			_ = s.bar.Finish()
		}
	})
}

// formatDuration renders d as mm:ss.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
