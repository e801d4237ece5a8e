package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const authTimeout = 30 * time.Second

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Exchange client credentials and print the JWT",
	Long: `Exchange client credentials for a JWT and print it to stdout.

Use it to check an authentication setup before a pipeline uploads results.
Requires --client-id, --client-secret and --auth-endpoint or their
environment variables (ARMIS_CLIENT_ID, ARMIS_CLIENT_SECRET,
ARMIS_AUTH_ENDPOINT).`,
	Example: `  export ARMIS_CLIENT_ID=MY_ID
  export ARMIS_CLIENT_SECRET=MY_SECRET
  export ARMIS_AUTH_ENDPOINT=https://auth.example.com
  armis-sarif auth`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, _ []string) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("--client-id is required (or set ARMIS_CLIENT_ID)")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("--client-secret is required (or set ARMIS_CLIENT_SECRET)")
	}
	if cfg.AuthEndpoint == "" {
		return fmt.Errorf("--auth-endpoint is required (or set ARMIS_AUTH_ENDPOINT)")
	}

	provider, err := getAuthProvider()
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
	defer cancel()

	token, err := provider.GetRawToken(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	// bare token so it can be piped into other tools
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
