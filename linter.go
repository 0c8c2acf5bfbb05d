package restyle

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Version is the current restyle release. Cache files written by other
// versions are discarded on load.
const Version = "0.2.0"

// ErrLint is returned when style findings are found
var ErrLint = errors.New("style findings found")

type Restyle struct {
	cfg     Config
	version string
	logger  *slog.Logger
	cache   *ResultCache
	rules   []RuleChecker

	fs afero.Fs
}

func NewLinter(cfg Config, version string, logger *slog.Logger, fs afero.Fs) (*Restyle, error) {
	linter := &Restyle{
		fs:      fs,
		cfg:     cfg,
		version: version,
		logger:  ensureLogger(logger),
		rules:   enabledRules(cfg, fs),
	}

	// Load the result cache for incremental analysis if enabled
	if cfg.Incremental {
		linter.cache = linter.initializeCache(cfg.CacheFile)
	}

	return linter, nil
}

// Cache returns the linter's result cache, or nil when incremental
// analysis is disabled.
func (g *Restyle) Cache() *ResultCache {
	return g.cache
}

// Lint analyzes Go files in the given path for style findings
func (g *Restyle) Lint(path string) (*Findings, error) {
	findings, err := g.walkAndLint(path)
	if err != nil {
		return nil, handleWalkError(err, path)
	}

	if g.cache != nil {
		if err := g.cache.Save(g.fs, g.cfg.CacheFile); err != nil {
			// A failed save costs the next run its cache, nothing more.
			g.logger.Warn("Failed to save result cache", "path", g.cfg.CacheFile, "error", err)
		}
	}

	return findings, nil
}

// LintFile analyzes a single file and updates its cache entry.
func (g *Restyle) LintFile(path string) ([]Finding, error) {
	content, err := afero.ReadFile(g.fs, path)
	if err != nil {
		return nil, NewFSError("failed to read file", err).WithFile(path)
	}

	fileFindings := g.checkRules(NormalizePath(path), content)
	if g.cache != nil {
		g.cache.SetFindings(fileFindings, NormalizePath(path))
	}
	return fileFindings, nil
}

// ensureLogger creates a default logger if none is provided
func ensureLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return logger
}

// initializeCache loads the result cache for incremental analysis.
// Any load failure means the previous results cannot be trusted, so the
// linter falls back to a fresh cache and re-analyzes everything.
func (g *Restyle) initializeCache(cachePath string) *ResultCache {
	fingerprint := g.cfg.Fingerprint()

	cache, err := LoadResultCache(g.fs, cachePath, g.version, fingerprint)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			g.logger.Info("No result cache found, starting fresh", "cache_file", cachePath)
		case errors.Is(err, ErrDifferentVersion),
			errors.Is(err, ErrDifferentConfiguration),
			errors.Is(err, ErrInconsistentLastRunDate),
			errors.Is(err, ErrInvalidCacheFormat):
			g.logger.Info("Discarding stale result cache", "cache_file", cachePath, "reason", err)
		default:
			g.logger.Warn("Failed to load result cache, starting fresh", "cache_file", cachePath, "error", err)
		}
		return NewResultCache(g.version, fingerprint)
	}

	g.logger.Info("Using incremental analysis", "cache_file", cachePath)
	return cache
}

// walkAndLint walks the file system and lints each Go file
func (g *Restyle) walkAndLint(path string) (*Findings, error) {
	findings := NewFindings()

	err := afero.Walk(g.fs, path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return NewFSError("error accessing path", err).WithFile(path).
				WithDetails("Check if the path exists and you have permission to access it")
		}

		if info.IsDir() {
			if g.isExcluded(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isGoFileFs(info) || g.isExcluded(path) {
			return nil
		}

		// Reuse previous findings when the file is unchanged since the
		// last saved run
		if g.cache != nil && !g.isStale(path, info) {
			if cached, ok := g.cache.Findings(NormalizePath(path)); ok {
				for i := range cached {
					cached[i].Cached = true
					findings.Add(cached[i])
				}
				return nil
			}
		}

		return g.lintFile(path, findings)
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// isStale reports whether a file must be re-analyzed. A file is stale
// when the cache has no last run date yet or the file was modified after
// the last saved run. The staleness policy lives here, not in the cache.
func (g *Restyle) isStale(path string, info os.FileInfo) bool {
	lastRun, ok := g.cache.LastRunDate()
	if !ok {
		return true
	}
	return info.ModTime().After(lastRun)
}

// isExcluded checks the path against the configured exclusion list
func (g *Restyle) isExcluded(path string) bool {
	for _, excluded := range g.cfg.Excluded {
		if IsSubPath(excluded, path) {
			return true
		}
	}
	return false
}

// isGoFileFs checks if the file is a Go source file
func isGoFileFs(info os.FileInfo) bool {
	return !info.IsDir() && strings.HasSuffix(info.Name(), ".go")
}

// lintFile lints a single Go file and records its findings in the cache
func (g *Restyle) lintFile(goFilePath string, findings *Findings) error {
	g.logger.Debug("Analyzing file", "path", goFilePath)

	content, err := afero.ReadFile(g.fs, goFilePath)
	if err != nil {
		g.logger.Error("Could not read file", "path", goFilePath, "error", err)
		// Continue with other files even if one fails to read
		return nil
	}

	normalizedPath := NormalizePath(goFilePath)
	fileFindings := g.checkRules(normalizedPath, content)
	for _, f := range fileFindings {
		findings.Add(f)
	}

	// Replace the file's cache entry unconditionally; a clean file gets
	// an empty entry so the next run can skip it too
	if g.cache != nil {
		g.cache.SetFindings(fileFindings, normalizedPath)
	}

	return nil
}

// checkRules runs every enabled rule over a file's content
func (g *Restyle) checkRules(path string, content []byte) []Finding {
	findings := make([]Finding, 0)
	for _, rule := range g.rules {
		ruleFindings := rule.Check(path, content)
		if len(ruleFindings) > 0 {
			g.logger.Debug("Rule reported findings", "path", path, "rule", rule.ID(), "count", len(ruleFindings))
		}
		findings = append(findings, ruleFindings...)
	}
	return findings
}

// handleWalkError handles errors that occur during file system walking
func handleWalkError(err error, path string) error {
	if os.IsPermission(err) {
		return NewFSError("permission denied while walking the path", err).
			WithDetails("Path: " + path + ". Check if you have the necessary permissions.")
	} else if os.IsNotExist(err) {
		return NewFSError("path does not exist", err).
			WithDetails("Path: " + path + ". Check if the path exists.")
	}
	return NewLintError("error walking the path", err).WithDetails("Path: " + path)
}
