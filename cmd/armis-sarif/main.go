// Package main is the entry point for armis-sarif.
package main

import (
	"errors"
	"os"

	"github.com/ArmisSecurity/armis-sarif/internal/cli"
	"github.com/ArmisSecurity/armis-sarif/internal/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}
