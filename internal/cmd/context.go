package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArmisSecurity/armis-sarif/internal/cli"
)

// NewSignalContext creates a context that is cancelled when SIGINT or SIGTERM
// is received. The returned cancel function should be called to release resources.
func NewSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// handleUploadError wraps a failed run, telling the user when it was
// interrupted rather than failed.
func handleUploadError(err error) error {
	if errors.Is(err, context.Canceled) {
		cli.PrintWarning("Upload cancelled")
	}
	return fmt.Errorf("upload failed: %w", err)
}
