package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArmisSecurity/armis-sarif/internal/config"
	"github.com/ArmisSecurity/armis-sarif/internal/output"
	"github.com/ArmisSecurity/armis-sarif/internal/sarif"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List the SARIF files an upload would send",
	Long: `Search --root with the same include, exclude and file limit rules as
upload and print the matches. Nothing is sent to Armis Cloud.`,
	Example: `  armis-sarif discover --root build/reports
  armis-sarif discover --exclude "**/*.baseline.sarif" --format json`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&cfg.Format, "format", cfg.Format, "Output format: "+strings.Join(config.OutputFormats, ", "))
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	formatter, err := output.GetFormatter(strings.ToLower(cfg.Format))
	if err != nil {
		return err
	}

	opts := cfg.RunnerOptions().Locate
	opts.Logger = logger
	result, err := sarif.Locate(opts)
	if err != nil {
		return err
	}
	return formatter.FormatDiscovery(cmd.OutOrStdout(), result)
}
