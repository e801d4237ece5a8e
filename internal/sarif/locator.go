// Package sarif discovers SARIF result files on disk and prepares them for
// multipart upload.
package sarif

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ArmisSecurity/armis-sarif/internal/logging"
)

// DefaultMaxFiles caps how many files a single run uploads.
const DefaultMaxFiles = 100

// ErrNoInput is returned when discovery finds no qualifying files.
var ErrNoInput = errors.New("no SARIF files found")

var (
	// DefaultInclude selects SARIF result files.
	DefaultInclude = []string{"**/*.sarif", "**/*.sarif.json"}
	// DefaultExcludeDirs lists directories that are never searched unless
	// --exclude-dirs overrides them.
	DefaultExcludeDirs = []string{"node_modules"}
)

// MatchedFile is a discovered result file.
type MatchedFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// DiscoveryResult holds the files selected for upload.
type DiscoveryResult struct {
	Files []MatchedFile `json:"files"`
	// Truncated is true when more files matched than MaxFiles allowed.
	Truncated bool `json:"truncated"`
	// Skipped holds the matches beyond MaxFiles. They are reported, never uploaded.
	Skipped []MatchedFile `json:"skipped,omitempty"`
}

// LocateOptions configures a discovery walk.
type LocateOptions struct {
	Root        string
	Include     []string
	Exclude     []string
	ExcludeDirs []string
	MaxFiles    int
	Logger      logging.Logger
}

// Locate walks opts.Root and returns the files matching the include patterns
// and none of the exclusions, in walk order (depth-first, lexical within each
// directory). It returns ErrNoInput when nothing qualifies.
func Locate(opts LocateOptions) (*DiscoveryResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	includePatterns := opts.Include
	if len(cleanPatterns(includePatterns)) == 0 {
		includePatterns = DefaultInclude
	}
	// nil means the defaults, an empty list searches every directory.
	excludeDirPatterns := opts.ExcludeDirs
	if excludeDirPatterns == nil {
		excludeDirPatterns = DefaultExcludeDirs
	}
	include := newIncludeMatcher(includePatterns)
	exclude := newExcludeMatcher(opts.Exclude)
	excludeDirs := newExcludeMatcher(excludeDirPatterns)

	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	// WalkDir does not descend into a symlinked root. A trailing separator
	// makes it resolve the link while paths stay under absRoot.
	walkRoot := absRoot
	if !strings.HasSuffix(walkRoot, string(filepath.Separator)) {
		walkRoot += string(filepath.Separator)
	}

	var matches []MatchedFile
	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == walkRoot {
				return walkErr
			}
			// Unreadable entries are skipped, the rest of the tree is still searched.
			logger.Debugf("skipping unreadable path %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		parts := splitRel(rel)

		if d.IsDir() {
			if isVCSDir(d.Name()) || excludeDirs.excluded(parts, true) {
				logger.Debugf("skipping directory %s", rel)
				return filepath.SkipDir
			}
			return nil
		}

		if !isRegularFile(path, d) {
			return nil
		}
		if !include.matchFile(parts) {
			return nil
		}
		if exclude.excluded(parts, false) {
			logger.Debugf("excluding %s", rel)
			return nil
		}

		matches = append(matches, MatchedFile{Name: d.Name(), Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", absRoot, err)
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoInput, absRoot)
	}

	result := &DiscoveryResult{Files: matches}
	if len(matches) > maxFiles {
		result.Files = matches[:maxFiles:maxFiles]
		result.Skipped = matches[maxFiles:]
		result.Truncated = true

		logger.Infof("found %d SARIF files, uploading the first %d", len(matches), maxFiles)
		for _, f := range result.Skipped {
			logger.Infof("skipping %s (%s): file limit reached", f.Name, f.Path)
		}
	}

	logger.Debugf("discovered %d SARIF files under %s", len(result.Files), absRoot)
	return result, nil
}

func isVCSDir(name string) bool {
	switch name {
	case ".git", ".svn", ".hg":
		return true
	}
	return false
}

// isRegularFile follows symlinks so linked result files are still found.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
