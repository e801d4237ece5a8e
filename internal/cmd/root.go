package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ArmisSecurity/armis-sarif/internal/auth"
	"github.com/ArmisSecurity/armis-sarif/internal/cli"
	"github.com/ArmisSecurity/armis-sarif/internal/config"
	"github.com/ArmisSecurity/armis-sarif/internal/logging"
	"github.com/ArmisSecurity/armis-sarif/internal/output"
	"github.com/ArmisSecurity/armis-sarif/internal/progress"
	"github.com/ArmisSecurity/armis-sarif/internal/update"
)

const (
	themeAuto  = config.ThemeAuto
	themeDark  = config.ThemeDark
	themeLight = config.ThemeLight
)

// envVars maps flags to the environment variables providing their defaults.
var envVars = map[string]string{
	"api-url":       "ARMIS_API_URL",
	"token":         "ARMIS_API_TOKEN",
	"client-id":     "ARMIS_CLIENT_ID",
	"client-secret": "ARMIS_CLIENT_SECRET",
	"auth-endpoint": "ARMIS_AUTH_ENDPOINT",
	"log-level":     "ARMIS_LOG_LEVEL",
	"max-files":     "ARMIS_MAX_FILES",
}

var (
	cfg        = config.Default()
	configFile string
	logger     = logging.Nop()

	updateResultCh <-chan *update.CheckResult

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "armis-sarif",
	Short: "Upload SARIF results to Armis",
	Long: `Find SARIF result files produced by static analysis tools and upload them
to Armis Cloud for analysis, optionally waiting for the outcome and exporting a report.`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRun,
}

// SetVersion sets the version information shown by --version and used by
// the update check.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, cancel := NewSignalContext()
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	PrintUpdateNotification()
	return err
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file with flag names as keys; explicit flags take precedence")
	flags.StringVar(&cfg.APIURL, "api-url", getEnvOrDefault("ARMIS_API_URL", config.DefaultAPIURL), "Armis Cloud API base URL (env: ARMIS_API_URL)")
	flags.StringVar(&cfg.Token, "token", os.Getenv("ARMIS_API_TOKEN"), "API token for authentication (env: ARMIS_API_TOKEN)")
	flags.StringVar(&cfg.ClientID, "client-id", os.Getenv("ARMIS_CLIENT_ID"), "Client ID for JWT authentication (env: ARMIS_CLIENT_ID)")
	flags.StringVar(&cfg.ClientSecret, "client-secret", os.Getenv("ARMIS_CLIENT_SECRET"), "Client secret for JWT authentication (env: ARMIS_CLIENT_SECRET)")
	flags.StringVar(&cfg.AuthEndpoint, "auth-endpoint", os.Getenv("ARMIS_AUTH_ENDPOINT"), "Authentication service URL for JWT authentication (env: ARMIS_AUTH_ENDPOINT)")

	flags.StringVar(&cfg.Root, "root", cfg.Root, "Directory to search for SARIF files")
	flags.StringSliceVar(&cfg.Include, "include", cfg.Include, "Glob patterns of files to upload (comma-separated, replaces the default)")
	flags.StringSliceVar(&cfg.Exclude, "exclude", cfg.Exclude, "Glob patterns of files to skip (comma-separated, prefix with ! to re-include)")
	flags.StringSliceVar(&cfg.ExcludeDirs, "exclude-dirs", cfg.ExcludeDirs, "Glob patterns of directories to skip (comma-separated)")
	flags.IntVar(&cfg.MaxFiles, "max-files", getEnvOrDefaultInt("ARMIS_MAX_FILES", cfg.MaxFiles), "Maximum number of files to upload (env: ARMIS_MAX_FILES)")

	flags.StringVar(&cfg.LogLevel, "log-level", getEnvOrDefault("ARMIS_LOG_LEVEL", cfg.LogLevel), "Log level: debug, info, warn, error (env: ARMIS_LOG_LEVEL)")
	flags.StringVar(&cfg.Color, "color", cfg.Color, "Color output: auto, always, never")
	flags.StringVar(&cfg.Theme, "theme", cfg.Theme, "Terminal background: auto, dark, light")
	flags.BoolVar(&cfg.NoProgress, "no-progress", false, "Disable progress indicators and spinners")
	flags.BoolVar(&cfg.NoUpdateCheck, "no-update-check", false, "Skip checking for a newer release")

	SetupHelp(rootCmd)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// flagIsSet reports whether a setting came from the command line or the
// environment, in which case a config file must not override it.
func flagIsSet(flags *pflag.FlagSet) func(string) bool {
	return func(key string) bool {
		if f := flags.Lookup(key); f != nil && f.Changed {
			return true
		}
		if env, ok := envVars[key]; ok && os.Getenv(env) != "" {
			return true
		}
		return false
	}
}

// initRun loads the config file and sets up colors, logging and the update
// check before any command runs.
func initRun(cmd *cobra.Command, _ []string) error {
	if configFile != "" {
		if err := config.ApplyFile(cfg, configFile, flagIsSet(cmd.Flags())); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cli.InitColors(cli.ColorMode(strings.ToLower(cfg.Color)))
	applyTheme(strings.ToLower(cfg.Theme))
	output.SyncColors()

	var err error
	if strings.EqualFold(cfg.Format, "json") {
		logger, err = logging.NewJSON(os.Stderr, cfg.LogLevel)
	} else {
		logger, err = logging.New(os.Stderr, logging.Options{
			Level:   cfg.LogLevel,
			NoColor: !cli.ColorsEnabled(),
		})
	}
	if err != nil {
		return err
	}

	startUpdateCheck(cmd)
	return nil
}

func applyTheme(theme string) {
	switch theme {
	case themeDark:
		lipgloss.SetHasDarkBackground(true)
	case themeLight:
		lipgloss.SetHasDarkBackground(false)
	case themeAuto:
		// lipgloss queries the terminal
	}
}

func startUpdateCheck(cmd *cobra.Command) {
	if cfg.NoUpdateCheck || version == "dev" || progress.IsCI() {
		return
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	checker := update.NewChecker(version, update.WithLogger(logger))
	updateResultCh = checker.CheckInBackground(ctx)
}

// PrintUpdateNotification prints a notice when the background check found a
// newer release. It never waits for a check that is still running.
func PrintUpdateNotification() {
	if updateResultCh == nil {
		return
	}
	select {
	case result, ok := <-updateResultCh:
		if ok && result != nil {
			fmt.Fprintln(os.Stderr, update.FormatNotification(result.CurrentVersion, result.LatestVersion))
		}
	default:
	}
}

// getAuthProvider builds the auth provider from the resolved configuration.
func getAuthProvider() (*auth.AuthProvider, error) {
	return auth.NewAuthProvider(auth.AuthConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AuthEndpoint: cfg.AuthEndpoint,
		Token:        cfg.Token,
		Logger:       logger,
	})
}
