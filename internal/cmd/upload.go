package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArmisSecurity/armis-sarif/internal/api"
	"github.com/ArmisSecurity/armis-sarif/internal/config"
	"github.com/ArmisSecurity/armis-sarif/internal/model"
	"github.com/ArmisSecurity/armis-sarif/internal/output"
	"github.com/ArmisSecurity/armis-sarif/internal/scan"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload SARIF results and wait for the analysis",
	Long: `Discover SARIF files under --root, create a scan, upload the files and,
unless --wait=false, poll until the analysis reaches a final status.

The exit code is 0 when the analysis completes. Failed, errored and timed out
analyses exit with --exit-code unless --on-failure is continue_on_failure.`,
	Example: `  # Upload every SARIF file in the current directory tree
  armis-sarif upload --project shop --branch main

  # Upload a single tool's output without waiting
  armis-sarif upload --project shop --branch main --include "semgrep/*.sarif" --wait=false

  # Wait up to 10 minutes and export a detailed HTML report
  armis-sarif upload --project shop --branch main --timeout 10 --export-format detailed --export-file-type html`,
	Args: cobra.NoArgs,
	RunE: runUpload,
}

func init() {
	flags := uploadCmd.Flags()
	flags.StringVar(&cfg.Project, "project", "", "Project name (required)")
	flags.StringVar(&cfg.Branch, "branch", "", "Branch name (required)")
	flags.StringVar(&cfg.BuildID, "build-id", "", "CI build identifier")
	flags.StringVar(&cfg.Commit, "commit", "", "Commit SHA the results belong to")
	flags.StringVar(&cfg.Tool, "tool", "", "Name of the tool that produced the results")

	flags.BoolVar(&cfg.Wait, "wait", cfg.Wait, "Wait for the analysis to finish")
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Delay between status checks")
	flags.IntVar(&cfg.Timeout, "timeout", cfg.Timeout, "Maximum time in minutes to wait for the analysis")
	flags.IntVar(&cfg.MaxPolls, "max-polls", cfg.MaxPolls, "Maximum number of status checks (0 = no limit)")
	flags.IntVar(&cfg.UploadTimeout, "upload-timeout", cfg.UploadTimeout, "Maximum time in minutes for the upload")
	flags.StringVar(&cfg.OnFailure, "on-failure", cfg.OnFailure, "Failure policy: "+strings.Join(scan.OnFailurePolicies, ", "))
	flags.IntVar(&cfg.ExitCode, "exit-code", cfg.ExitCode, "Exit code when the analysis does not complete (1-255)")

	flags.StringVar(&cfg.ExportFormat, "export-format", "", "Export a report after completion: "+strings.Join(model.ReportFormats, ", "))
	flags.StringVar(&cfg.ExportFileType, "export-file-type", cfg.ExportFileType, "Report file type: "+strings.Join(model.ReportFileTypes, ", "))
	flags.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "Directory the report is written to")
	flags.StringVar(&cfg.Format, "format", cfg.Format, "Summary format: "+strings.Join(config.OutputFormats, ", "))

	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateUpload(); err != nil {
		return err
	}

	formatter, err := output.GetFormatter(strings.ToLower(cfg.Format))
	if err != nil {
		return err
	}

	provider, err := getAuthProvider()
	if err != nil {
		return err
	}

	client, err := api.NewClient(cfg.APIURL, provider, logger,
		time.Duration(cfg.UploadTimeout)*time.Minute,
		api.WithUserAgent("armis-sarif/"+version))
	if err != nil {
		return err
	}

	runner := scan.NewRunner(client, logger, cfg.RunnerOptions())
	result, err := runner.Run(cmd.Context())
	if err != nil {
		return handleUploadError(err)
	}

	if err := formatter.FormatResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if code := scan.ExitCode(result.Status, cfg.OnFailurePolicy(), cfg.ExitCode); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
