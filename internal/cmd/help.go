// Package cmd implements the armis-sarif commands.
package cmd

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArmisSecurity/armis-sarif/internal/cli"
	"github.com/ArmisSecurity/armis-sarif/internal/config"
	"github.com/ArmisSecurity/armis-sarif/internal/output"
)

// helpHeadings are the section titles of cobra's usage template. "Global
// Flags:" precedes "Flags:" so the replacer matches the longer title first.
var helpHeadings = []string{
	"Usage:",
	"Aliases:",
	"Examples:",
	"Available Commands:",
	"Additional Commands:",
	"Global Flags:",
	"Flags:",
	"Additional help topics:",
	"Environment:",
}

var (
	helpCommandRe   = regexp.MustCompile(`(?m)^(  )([a-z][-a-z0-9]*)(\s{2,})(.*)$`)
	helpLongFlagRe  = regexp.MustCompile(`--[a-z][-a-z0-9]*`)
	helpShortFlagRe = regexp.MustCompile(`(\s)(-[a-zA-Z])([,\s])`)
	helpEnvRe       = regexp.MustCompile(`\bARMIS_[A-Z0-9_]+\b`)
)

// SetupHelp installs the styled help function. Subcommands inherit it, so it
// is only called on the root command.
func SetupHelp(cmd *cobra.Command) {
	defaultHelp := cmd.HelpFunc()
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		// --help skips PersistentPreRunE
		applyHelpColors()

		out := c.OutOrStdout()
		var buf bytes.Buffer
		c.SetOut(&buf)
		c.SetUsageTemplate(styledUsageTemplate())
		defaultHelp(c, args)
		c.SetOut(out)

		if !c.HasParent() {
			buf.WriteString(environmentHelp())
		}
		_, _ = io.WriteString(out, styleHelpOutput(buf.String()))
	})
}

// applyHelpColors applies the parsed --color and --theme values. Invalid
// values keep the startup detection; the command itself rejects them.
func applyHelpColors() {
	if cli.ColorsForced() {
		return
	}
	if mode := strings.ToLower(cfg.Color); slices.Contains(cli.ColorModes, mode) {
		cli.InitColors(cli.ColorMode(mode))
	}
	if theme := strings.ToLower(cfg.Theme); slices.Contains(config.Themes, theme) {
		applyTheme(theme)
	}
	output.SyncColors()
}

// styledUsageTemplate returns cobra's usage template with bold section
// headings, or the template unchanged when colors are off.
func styledUsageTemplate() string {
	tmpl := defaultUsageTemplate()
	if !cli.ColorsEnabled() {
		return tmpl
	}
	return headingReplacer().Replace(tmpl)
}

func headingReplacer() *strings.Replacer {
	heading := output.GetStyles().HelpHeading
	pairs := make([]string, 0, 2*len(helpHeadings))
	for _, h := range helpHeadings {
		pairs = append(pairs, h, heading.Render(h))
	}
	return strings.NewReplacer(pairs...)
}

// defaultUsageTemplate returns Cobra's default usage template.
func defaultUsageTemplate() string {
	return (&cobra.Command{}).UsageTemplate()
}

// environmentHelp lists the environment variables that provide flag defaults.
func environmentHelp() string {
	names := make([]string, 0, len(envVars))
	width := 0
	for flag, env := range envVars {
		names = append(names, flag)
		width = max(width, len(env))
	}
	sort.Slice(names, func(i, j int) bool { return envVars[names[i]] < envVars[names[j]] })

	var b strings.Builder
	b.WriteString("\nEnvironment:\n")
	for _, flag := range names {
		fmt.Fprintf(&b, "  %-*s  --%s\n", width, envVars[flag], flag)
	}
	if cli.ColorsEnabled() {
		return headingReplacer().Replace(b.String())
	}
	return b.String()
}

// styleHelpOutput colors command names, flags and environment variables.
func styleHelpOutput(s string) string {
	if !cli.ColorsEnabled() {
		return s
	}
	styles := output.GetStyles()

	s = helpCommandRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := helpCommandRe.FindStringSubmatch(match)
		return parts[1] + styles.HelpCommand.Render(parts[2]) + parts[3] + parts[4]
	})
	s = helpLongFlagRe.ReplaceAllStringFunc(s, func(match string) string {
		return styles.HelpFlag.Render(match)
	})
	s = helpShortFlagRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := helpShortFlagRe.FindStringSubmatch(match)
		return parts[1] + styles.HelpFlag.Render(parts[2]) + parts[3]
	})
	return helpEnvRe.ReplaceAllStringFunc(s, func(match string) string {
		return styles.HelpEnv.Render(match)
	})
}
