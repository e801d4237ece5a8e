// Package update checks GitHub for a newer release of the CLI.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/ArmisSecurity/armis-sarif/internal/httpclient"
	"github.com/ArmisSecurity/armis-sarif/internal/logging"
	"github.com/ArmisSecurity/armis-sarif/internal/output"
	"github.com/ArmisSecurity/armis-sarif/internal/util"
)

const (
	githubReleasesURL = "https://api.github.com/repos/ArmisSecurity/armis-sarif/releases/latest"

	// cacheTTL is how long a fetched release tag is trusted.
	cacheTTL = 24 * time.Hour

	checkTimeout = 10 * time.Second

	// cacheRelPath is the cache file location below the XDG cache home.
	cacheRelPath = "armis-sarif/update-check.json"

	userAgent = "armis-sarif-update-check"
)

// CheckResult holds the result of a version check.
type CheckResult struct {
	LatestVersion  string
	CurrentVersion string
}

// cacheFile is the on-disk JSON structure for persisting check results.
type cacheFile struct {
	LatestVersion string    `json:"latest_version"`
	CheckedAt     time.Time `json:"checked_at"`
}

// githubRelease is the minimal structure from the GitHub releases API.
type githubRelease struct {
	TagName string `json:"tag_name"`
}

// Checker performs version update checks.
type Checker struct {
	currentVersion string
	releasesURL    string
	cacheTTL       time.Duration
	cachePath      string // empty resolves through xdg.CacheFile
	httpClient     *httpclient.Client
	logger         logging.Logger
}

// Option customizes a Checker.
type Option func(*Checker)

// WithCachePath stores the check result at path instead of the XDG cache.
func WithCachePath(path string) Option {
	return func(c *Checker) { c.cachePath = path }
}

// WithReleasesURL overrides the GitHub releases endpoint.
func WithReleasesURL(url string) Option {
	return func(c *Checker) { c.releasesURL = url }
}

// WithLogger logs check failures at debug level.
func WithLogger(logger logging.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// NewChecker creates a version update checker.
// currentVersion should be the semver version (e.g., "1.0.7").
func NewChecker(currentVersion string, opts ...Option) *Checker {
	c := &Checker{
		currentVersion: currentVersion,
		releasesURL:    githubReleasesURL,
		cacheTTL:       cacheTTL,
		httpClient: httpclient.NewClient(httpclient.Config{
			Timeout:      checkTimeout,
			RetryMax:     1,
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: time.Second,
		}),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckInBackground starts a non-blocking version check.
// Returns a channel that will receive at most one *CheckResult.
// The channel is closed when the check completes (or is skipped).
func (c *Checker) CheckInBackground(ctx context.Context) <-chan *CheckResult {
	ch := make(chan *CheckResult, 1)

	// Use a short-lived context so the background check does not hold
	// the process open.
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)

	go func() {
		defer cancel()
		defer close(ch)
		if result := c.Check(checkCtx); result != nil {
			ch <- result
		}
	}()

	return ch
}

// Check performs the version check. It returns nil when no newer release is
// known or the check failed.
func (c *Checker) Check(ctx context.Context) *CheckResult {
	latest := ""
	if cached := c.readCache(); cached != nil && time.Since(cached.CheckedAt) < c.cacheTTL {
		latest = cached.LatestVersion
	} else {
		fetched, err := c.fetchLatestVersion(ctx)
		if err != nil {
			c.logger.Debugf("update check failed: %v", err)
			return nil
		}
		// Don't cache empty tags - retry on next check
		if fetched == "" {
			return nil
		}
		c.writeCache(&cacheFile{LatestVersion: fetched, CheckedAt: time.Now()})
		latest = fetched
	}

	if !IsNewer(c.currentVersion, latest) {
		return nil
	}
	return &CheckResult{LatestVersion: latest, CurrentVersion: c.currentVersion}
}

func (c *Checker) fetchLatestVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.releasesURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	// Limit body size to prevent memory issues
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}

	var release githubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", err
	}
	return release.TagName, nil
}

// cacheFilePath returns the validated cache location, or "" when caching
// is unavailable.
func (c *Checker) cacheFilePath() string {
	path := c.cachePath
	if path == "" {
		resolved, err := xdg.CacheFile(cacheRelPath)
		if err != nil {
			return ""
		}
		path = resolved
	}
	// Reject traversal in configured paths (CWE-73)
	sanitized, err := util.SanitizePath(path)
	if err != nil {
		return ""
	}
	return sanitized
}

func (c *Checker) readCache() *cacheFile {
	path := c.cacheFilePath()
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path validated by SanitizePath
	if err != nil {
		return nil
	}
	var cache cacheFile
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil
	}
	return &cache
}

// writeCache persists a check result. Errors are ignored.
func (c *Checker) writeCache(result *cacheFile) {
	path := c.cacheFilePath()
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o600) //nolint:gosec // path validated by SanitizePath
}

// IsNewer returns true if latest is a newer version than current.
// Versions may optionally have a "v" prefix.
func IsNewer(current, latest string) bool {
	curParts := parseVersion(strings.TrimPrefix(current, "v"))
	latParts := parseVersion(strings.TrimPrefix(latest, "v"))
	if curParts == nil || latParts == nil {
		return false
	}

	for i := 0; i < 3; i++ {
		if latParts[i] != curParts[i] {
			return latParts[i] > curParts[i]
		}
	}
	return false
}

// parseVersion returns [major, minor, patch] or nil if invalid.
func parseVersion(v string) []int {
	// Strip any pre-release suffix (e.g., "-rc1")
	if idx := strings.IndexByte(v, '-'); idx >= 0 {
		v = v[:idx]
	}
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return nil
	}
	result := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil
		}
		result[i] = n
	}
	return result
}

// FormatNotification builds the user-facing notification string.
func FormatNotification(current, latest string) string {
	styles := output.GetStyles()
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")

	label := styles.WarningText.Render(output.IconUpdate + " Update available:")
	versions := styles.Bold.Render(fmt.Sprintf("v%s → v%s", current, latest))

	msg := fmt.Sprintf("\n%s %s\n", label, versions)
	if updateCmd := updateCommand(runtime.GOOS); updateCmd != "" {
		msg += fmt.Sprintf("   %s\n", styles.MutedText.Render(updateCmd))
	}
	return msg
}

func updateCommand(goos string) string {
	switch goos {
	case "darwin":
		return "brew upgrade armis-sarif"
	case "linux":
		return "curl -sSL https://raw.githubusercontent.com/ArmisSecurity/armis-sarif/main/scripts/install.sh | bash"
	case "windows":
		return "irm https://raw.githubusercontent.com/ArmisSecurity/armis-sarif/main/scripts/install.ps1 | iex"
	default:
		return ""
	}
}
