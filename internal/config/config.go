// Package config holds the typed run configuration and its validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ArmisSecurity/armis-sarif/internal/api"
	"github.com/ArmisSecurity/armis-sarif/internal/cli"
	"github.com/ArmisSecurity/armis-sarif/internal/logging"
	"github.com/ArmisSecurity/armis-sarif/internal/model"
	"github.com/ArmisSecurity/armis-sarif/internal/sarif"
	"github.com/ArmisSecurity/armis-sarif/internal/scan"
)

// ErrInvalid wraps every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Defaults shared by flags and tests.
const (
	DefaultAPIURL        = "https://api.armis.com"
	DefaultTimeout       = 30 // minutes
	DefaultUploadTimeout = 10 // minutes
	DefaultExitCode      = 1
)

const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// OutputFormats lists the accepted --format values.
var OutputFormats = []string{"human", "json"}

// Themes lists the accepted --theme values.
var Themes = []string{ThemeAuto, ThemeDark, ThemeLight}

// Config is the complete configuration of a run. The yaml keys are the flag
// names, so a config file uses the same vocabulary as the command line.
type Config struct {
	APIURL       string `yaml:"api-url"`
	Token        string `yaml:"token"`
	ClientID     string `yaml:"client-id"`
	ClientSecret string `yaml:"client-secret"`
	AuthEndpoint string `yaml:"auth-endpoint"`

	Root        string   `yaml:"root"`
	Include     []string `yaml:"include"`
	Exclude     []string `yaml:"exclude"`
	ExcludeDirs []string `yaml:"exclude-dirs"`
	MaxFiles    int      `yaml:"max-files"`

	LogLevel      string `yaml:"log-level"`
	Color         string `yaml:"color"`
	Theme         string `yaml:"theme"`
	NoProgress    bool   `yaml:"no-progress"`
	NoUpdateCheck bool   `yaml:"no-update-check"`
	Format        string `yaml:"format"`

	Project string `yaml:"project"`
	Branch  string `yaml:"branch"`
	BuildID string `yaml:"build-id"`
	Commit  string `yaml:"commit"`
	Tool    string `yaml:"tool"`

	Wait          bool          `yaml:"wait"`
	PollInterval  time.Duration `yaml:"poll-interval"`
	Timeout       int           `yaml:"timeout"`
	MaxPolls      int           `yaml:"max-polls"`
	UploadTimeout int           `yaml:"upload-timeout"`
	OnFailure     string        `yaml:"on-failure"`
	ExitCode      int           `yaml:"exit-code"`

	ExportFormat   string `yaml:"export-format"`
	ExportFileType string `yaml:"export-file-type"`
	ExportDir      string `yaml:"export-dir"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		APIURL:         DefaultAPIURL,
		Root:           ".",
		Include:        append([]string(nil), sarif.DefaultInclude...),
		ExcludeDirs:    append([]string(nil), sarif.DefaultExcludeDirs...),
		MaxFiles:       sarif.DefaultMaxFiles,
		LogLevel:       "info",
		Color:          string(cli.ColorModeAuto),
		Theme:          ThemeAuto,
		Format:         "human",
		Wait:           true,
		PollInterval:   5 * time.Second,
		Timeout:        DefaultTimeout,
		UploadTimeout:  DefaultUploadTimeout,
		OnFailure:      string(scan.FailTheBuild),
		ExitCode:       DefaultExitCode,
		ExportFileType: model.DefaultReportFileType,
		ExportDir:      ".",
	}
}

// ApplyFile loads the YAML file at path into cfg. Keys for which isSet
// reports true keep their current value. Unknown keys are errors.
func ApplyFile(cfg *Config, path string, isSet func(key string) bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is an explicit --config argument
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return apply(cfg, data, isSet)
}

func apply(cfg *Config, data []byte, isSet func(key string) bool) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: config file must be a mapping of flag names to values", ErrInvalid)
	}

	fields := fieldsByKey(cfg)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode, valueNode := mapping.Content[i], mapping.Content[i+1]
		key := keyNode.Value

		field, ok := fields[key]
		if !ok {
			return fmt.Errorf("%w: unknown key %q (line %d)", ErrInvalid, key, keyNode.Line)
		}
		if isSet != nil && isSet(key) {
			continue
		}
		// Pattern lists may also be written as one comma-separated string.
		if field.Kind() == reflect.Slice && valueNode.Kind == yaml.ScalarNode {
			list := sarif.SplitPatterns(valueNode.Value)
			if list == nil {
				list = []string{}
			}
			field.Set(reflect.ValueOf(list))
			continue
		}
		if err := valueNode.Decode(field.Addr().Interface()); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
		}
	}
	return nil
}

// fieldsByKey maps each yaml key of Config to its settable field.
func fieldsByKey(cfg *Config) map[string]reflect.Value {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	fields := make(map[string]reflect.Value, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		key := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if key != "" && key != "-" {
			fields[key] = v.Field(i)
		}
	}
	return fields
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("%v", err)
	}
	if !oneOf(c.Color, cli.ColorModes) {
		return invalid("invalid --color value %q: must be one of %v", c.Color, cli.ColorModes)
	}
	if !oneOf(c.Theme, Themes) {
		return invalid("invalid --theme value %q: must be auto, dark, or light", c.Theme)
	}
	if !oneOf(c.Format, OutputFormats) {
		return invalid("invalid --format value %q: must be one of %v", c.Format, OutputFormats)
	}
	if c.MaxFiles < 1 {
		return invalid("invalid --max-files value %d: must be at least 1", c.MaxFiles)
	}
	for flag, patterns := range map[string][]string{"include": c.Include, "exclude": c.Exclude, "exclude-dirs": c.ExcludeDirs} {
		if err := sarif.ValidatePatterns(patterns); err != nil {
			return invalid("invalid --%s value: %v", flag, err)
		}
	}
	return nil
}

// ValidateUpload checks everything an upload needs, including Validate.
func (c *Config) ValidateUpload() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Project) == "" {
		return invalid("--project is required")
	}
	if strings.TrimSpace(c.Branch) == "" {
		return invalid("--branch is required")
	}
	if c.APIURL == "" {
		return invalid("--api-url is required (or set ARMIS_API_URL)")
	}

	if _, err := scan.ParseOnFailure(c.OnFailure); err != nil {
		return invalid("%v", err)
	}
	// 0 would hide failures, >255 is not a valid POSIX exit status
	if c.ExitCode < 1 || c.ExitCode > 255 {
		return invalid("invalid --exit-code value %d: must be between 1 and 255", c.ExitCode)
	}
	if c.Timeout < 1 {
		return invalid("invalid --timeout value %d: must be at least 1 minute", c.Timeout)
	}
	if c.UploadTimeout < 1 {
		return invalid("invalid --upload-timeout value %d: must be at least 1 minute", c.UploadTimeout)
	}
	if c.PollInterval <= 0 {
		return invalid("invalid --poll-interval value %s: must be positive", c.PollInterval)
	}
	if c.MaxPolls < 0 {
		return invalid("invalid --max-polls value %d: must not be negative", c.MaxPolls)
	}

	if c.ExportFormat != "" && !oneOf(c.ExportFormat, model.ReportFormats) {
		return invalid("invalid --export-format value %q: must be one of %v", c.ExportFormat, model.ReportFormats)
	}
	if !oneOf(c.ExportFileType, model.ReportFileTypes) {
		return invalid("invalid --export-file-type value %q: must be one of %v", c.ExportFileType, model.ReportFileTypes)
	}

	return c.validateCredentials()
}

func (c *Config) validateCredentials() error {
	hasID, hasSecret := c.ClientID != "", c.ClientSecret != ""
	switch {
	case hasID != hasSecret:
		return invalid("both --client-id and --client-secret must be provided for JWT authentication")
	case hasID && c.AuthEndpoint == "":
		return invalid("--auth-endpoint is required with --client-id (or set ARMIS_AUTH_ENDPOINT)")
	case !hasID && c.Token == "":
		return invalid("authentication required: use --token (ARMIS_API_TOKEN) or --client-id and --client-secret")
	}
	return nil
}

// OnFailurePolicy returns the parsed on-failure policy. Call after ValidateUpload.
func (c *Config) OnFailurePolicy() scan.OnFailure {
	policy, err := scan.ParseOnFailure(c.OnFailure)
	if err != nil {
		return scan.FailTheBuild
	}
	return policy
}

// RunnerOptions converts the configuration for scan.NewRunner.
func (c *Config) RunnerOptions() scan.Options {
	return scan.Options{
		Locate: sarif.LocateOptions{
			Root:        c.Root,
			Include:     c.Include,
			Exclude:     c.Exclude,
			ExcludeDirs: c.ExcludeDirs,
			MaxFiles:    c.MaxFiles,
		},
		Scan: model.CreateScanRequest{
			Project:   c.Project,
			Branch:    c.Branch,
			BuildID:   c.BuildID,
			CommitSHA: c.Commit,
			Tool:      c.Tool,
		},
		Wait: c.Wait,
		Poll: api.PollOptions{
			Interval: c.PollInterval,
			Timeout:  time.Duration(c.Timeout) * time.Minute,
			MaxPolls: c.MaxPolls,
		},
		ExportFormat:   strings.ToLower(c.ExportFormat),
		ExportFileType: strings.ToLower(c.ExportFileType),
		ExportDir:      c.ExportDir,
		NoProgress:     c.NoProgress,
	}
}
