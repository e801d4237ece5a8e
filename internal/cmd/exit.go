package cmd

import "fmt"

// ExitError ends the process with Code without printing anything further.
// The summary that explains the outcome has already been written.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
