package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ArmisSecurity/armis-sarif/internal/config"
	"github.com/ArmisSecurity/armis-sarif/internal/update"
)

// withConfig resets the shared configuration for one test and restores it
// afterwards.
func withConfig(t *testing.T) {
	t.Helper()
	saved := *cfg
	savedFile, savedLogger, savedCh, savedVersion := configFile, logger, updateResultCh, version

	*cfg = *config.Default()
	cfg.Color = "never"
	cfg.NoProgress = true
	cfg.NoUpdateCheck = true
	configFile = ""

	t.Cleanup(func() {
		resetCommands(rootCmd)
		rootCmd.SetArgs(nil)
		*cfg = saved
		configFile, logger, updateResultCh, version = savedFile, savedLogger, savedCh, savedVersion
	})
}

// resetCommands restores flag values, including cobra's --help, and clears
// the output writers the styled help function leaves behind. Slice values
// are left to the cfg restore since Set appends once a slice was parsed.
func resetCommands(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if _, ok := f.Value.(pflag.SliceValue); !ok {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	c.SetOut(nil)
	for _, sub := range c.Commands() {
		resetCommands(sub)
	}
}

// executeCommand runs the root command with args and returns its stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSetVersion(t *testing.T) {
	withConfig(t)
	originalVersion := rootCmd.Version
	t.Cleanup(func() { rootCmd.Version = originalVersion })

	SetVersion("1.0.0", "abc123", "2024-01-01")

	if version != "1.0.0" {
		t.Errorf("Expected version '1.0.0', got %s", version)
	}
	if commit != "abc123" {
		t.Errorf("Expected commit 'abc123', got %s", commit)
	}
	if date != "2024-01-01" {
		t.Errorf("Expected date '2024-01-01', got %s", date)
	}

	if rootCmd.Version != "1.0.0 (commit: abc123, built: 2024-01-01)" {
		t.Errorf("Unexpected rootCmd.Version: %s", rootCmd.Version)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "from-env",
			expected:     "from-env",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_UNSET",
			defaultValue: "default",
			envValue:     "",
			expected:     "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)

			result := getEnvOrDefault(tt.key, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("getEnvOrDefault() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestGetEnvOrDefaultInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		expected     int
	}{
		{
			name:         "returns env value when valid int",
			key:          "TEST_INT",
			defaultValue: 100,
			envValue:     "200",
			expected:     200,
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_INT_UNSET",
			defaultValue: 100,
			envValue:     "",
			expected:     100,
		},
		{
			name:         "returns default when env is invalid int",
			key:          "TEST_INT_INVALID",
			defaultValue: 100,
			envValue:     "not-a-number",
			expected:     100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.envValue)

			result := getEnvOrDefaultInt(tt.key, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("getEnvOrDefaultInt() = %d, want %d", result, tt.expected)
			}
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	tests := []struct {
		name   string
		defVal string
	}{
		{name: "api-url", defVal: config.DefaultAPIURL},
		{name: "root", defVal: "."},
		{name: "include", defVal: "[**/*.sarif,**/*.sarif.json]"},
		{name: "exclude-dirs", defVal: "[node_modules]"},
		{name: "max-files", defVal: "100"},
		{name: "log-level", defVal: "info"},
		{name: "color", defVal: "auto"},
		{name: "theme", defVal: themeAuto},
		{name: "no-progress", defVal: "false"},
		{name: "no-update-check", defVal: "false"},
		{name: "config", defVal: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("Expected --%s flag to be registered", tt.name)
			}
			if os.Getenv(envVars[tt.name]) != "" {
				t.Skipf("%s is set in the environment", envVars[tt.name])
			}
			if flag.DefValue != tt.defVal {
				t.Errorf("--%s default = %q, want %q", tt.name, flag.DefValue, tt.defVal)
			}
			if flag.Usage == "" {
				t.Errorf("Expected --%s flag to have usage text", tt.name)
			}
		})
	}
}

func TestFlagIsSet(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("branch", "", "")
	flags.String("project", "", "")
	flags.String("token", "", "")
	if err := flags.Parse([]string{"--branch", "main"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	t.Setenv("ARMIS_API_TOKEN", "from-env")

	isSet := flagIsSet(flags)
	tests := []struct {
		key  string
		want bool
	}{
		{key: "branch", want: true},
		{key: "project", want: false},
		{key: "token", want: true},
		{key: "unknown", want: false},
	}
	for _, tt := range tests {
		if got := isSet(tt.key); got != tt.want {
			t.Errorf("flagIsSet(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

// TestRootPersistentPreRunE tests the root command's PersistentPreRunE callback directly.
func TestRootPersistentPreRunE(t *testing.T) {
	tests := []struct {
		name      string
		setup     func()
		errSubstr string
	}{
		{name: "valid color auto", setup: func() { cfg.Color = "auto" }},
		{name: "valid color always", setup: func() { cfg.Color = "always" }},
		{name: "valid color never", setup: func() { cfg.Color = "never" }},
		{name: "valid theme dark", setup: func() { cfg.Theme = "dark" }},
		{name: "valid theme light", setup: func() { cfg.Theme = "light" }},
		{name: "json format", setup: func() { cfg.Format = "json" }},
		{name: "invalid color", setup: func() { cfg.Color = "allways" }, errSubstr: "invalid --color value"},
		{name: "invalid theme", setup: func() { cfg.Theme = "drak" }, errSubstr: "invalid --theme value"},
		{name: "invalid log level", setup: func() { cfg.LogLevel = "verbose" }, errSubstr: "invalid log level"},
		{name: "invalid max files", setup: func() { cfg.MaxFiles = 0 }, errSubstr: "--max-files"},
		{name: "invalid glob", setup: func() { cfg.Include = []string{"[a"} }, errSubstr: "--include"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withConfig(t)
			tt.setup()

			err := rootCmd.PersistentPreRunE(rootCmd, nil)
			if tt.errSubstr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errSubstr)
			}
			if !errors.Is(err, config.ErrInvalid) {
				t.Errorf("expected config.ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errSubstr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errSubstr)
			}
		})
	}
}

func TestRootPersistentPreRunE_UpdateCheck(t *testing.T) {
	t.Run("skips update check in CI", func(t *testing.T) {
		withConfig(t)
		cfg.NoUpdateCheck = false
		version = "1.0.0"
		updateResultCh = nil
		t.Setenv("CI", "true")

		if err := rootCmd.PersistentPreRunE(rootCmd, nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if updateResultCh != nil {
			t.Error("expected updateResultCh to remain nil in CI environment")
		}
	})

	t.Run("skips update check for dev version", func(t *testing.T) {
		withConfig(t)
		cfg.NoUpdateCheck = false
		version = "dev"
		updateResultCh = nil

		if err := rootCmd.PersistentPreRunE(rootCmd, nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if updateResultCh != nil {
			t.Error("expected updateResultCh to remain nil for dev version")
		}
	})

	t.Run("skips update check when disabled", func(t *testing.T) {
		withConfig(t)
		version = "1.0.0"
		updateResultCh = nil

		if err := rootCmd.PersistentPreRunE(rootCmd, nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if updateResultCh != nil {
			t.Error("expected updateResultCh to remain nil with --no-update-check")
		}
	})
}

func TestRootPersistentPreRunE_ConfigFile(t *testing.T) {
	t.Run("file values fill unset flags", func(t *testing.T) {
		withConfig(t)
		path := filepath.Join(t.TempDir(), "armis.yaml")
		if err := os.WriteFile(path, []byte("max-files: 7\nlog-level: debug\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		configFile = path

		if err := rootCmd.PersistentPreRunE(rootCmd, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxFiles != 7 {
			t.Errorf("MaxFiles = %d, want 7", cfg.MaxFiles)
		}
	})

	t.Run("unknown key is rejected", func(t *testing.T) {
		withConfig(t)
		path := filepath.Join(t.TempDir(), "armis.yaml")
		if err := os.WriteFile(path, []byte("tenant-id: x\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		configFile = path

		err := rootCmd.PersistentPreRunE(rootCmd, nil)
		if !errors.Is(err, config.ErrInvalid) {
			t.Errorf("expected config.ErrInvalid, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		withConfig(t)
		configFile = filepath.Join(t.TempDir(), "missing.yaml")

		if err := rootCmd.PersistentPreRunE(rootCmd, nil); err == nil {
			t.Error("expected error for a missing config file")
		}
	})
}

// TestPrintUpdateNotification tests the update notification printing.
func TestPrintUpdateNotification(t *testing.T) {
	t.Run("nil channel does not panic", func(t *testing.T) {
		originalUpdateResultCh := updateResultCh
		defer func() { updateResultCh = originalUpdateResultCh }()

		updateResultCh = nil

		PrintUpdateNotification()
	})

	t.Run("empty channel does not block", func(t *testing.T) {
		originalUpdateResultCh := updateResultCh
		defer func() { updateResultCh = originalUpdateResultCh }()

		updateResultCh = make(chan *update.CheckResult)

		done := make(chan bool, 1)
		go func() {
			PrintUpdateNotification()
			done <- true
		}()

		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
			t.Error("PrintUpdateNotification blocked on empty channel")
		}
	})

	t.Run("closed channel without result", func(t *testing.T) {
		originalUpdateResultCh := updateResultCh
		defer func() { updateResultCh = originalUpdateResultCh }()

		ch := make(chan *update.CheckResult)
		close(ch)
		updateResultCh = ch

		PrintUpdateNotification()
	})
}

// TestGetAuthProvider_NoCredentials tests auth provider creation with no credentials.
func TestGetAuthProvider_NoCredentials(t *testing.T) {
	withConfig(t)
	cfg.Token = ""
	cfg.ClientID = ""
	cfg.ClientSecret = ""
	cfg.AuthEndpoint = ""

	if _, err := getAuthProvider(); err == nil {
		t.Error("expected error when no credentials are provided")
	}
}

func TestGetAuthProvider_StaticToken(t *testing.T) {
	withConfig(t)
	cfg.Token = "static-token"
	cfg.ClientID = ""
	cfg.ClientSecret = ""

	provider, err := getAuthProvider()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !provider.IsStatic() {
		t.Error("expected a static token provider")
	}
}
