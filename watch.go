package restyle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// WatchMode provides continuous file monitoring and re-analysis. When a
// watched file changes, its cached findings are cleared and the file is
// re-linted.
type WatchMode struct {
	linter *Restyle
	logger *slog.Logger
	fs     afero.Fs

	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	formatter    Formatter

	// Debouncing state
	mu             sync.Mutex
	pendingChanges map[string]time.Time
	debounceTimer  *time.Timer

	stats WatchStats
}

// WatchStats holds statistics about watch mode operation
type WatchStats struct {
	mu               sync.Mutex
	totalAnalyses    int
	filesAnalyzed    int
	findingsReported int
	lastAnalysisTime time.Time
}

// Snapshot returns a copy of the current statistics
func (s *WatchStats) Snapshot() (analyses, files, findings int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalAnalyses, s.filesAnalyzed, s.findingsReported
}

func (s *WatchStats) record(files, findings int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalAnalyses++
	s.filesAnalyzed += files
	s.findingsReported += findings
	s.lastAnalysisTime = time.Now()
}

// WatchConfig holds configuration for watch mode
type WatchConfig struct {
	Config       Config
	Version      string
	Logger       *slog.Logger
	FS           afero.Fs
	DebounceTime time.Duration
	Formatter    Formatter
}

// NewWatchMode creates a new WatchMode instance
func NewWatchMode(cfg WatchConfig) (*WatchMode, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}

	if cfg.DebounceTime == 0 {
		cfg.DebounceTime = 100 * time.Millisecond
	}

	if cfg.Formatter == nil {
		cfg.Formatter = &ColoredTextFormatter{Fs: cfg.FS}
	}

	if cfg.Version == "" {
		cfg.Version = Version
	}

	linter, err := NewLinter(cfg.Config, cfg.Version, cfg.Logger, cfg.FS)
	if err != nil {
		return nil, fmt.Errorf("failed to create linter: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &WatchMode{
		linter:         linter,
		logger:         cfg.Logger,
		fs:             cfg.FS,
		watcher:        watcher,
		debounceTime:   cfg.DebounceTime,
		formatter:      cfg.Formatter,
		pendingChanges: make(map[string]time.Time),
	}, nil
}

// Start begins watching for file changes. It blocks until the context is
// cancelled.
func (w *WatchMode) Start(ctx context.Context, path string) error {
	w.logger.Info("Starting watch mode", "path", path)

	// Initial full analysis
	findings, err := w.linter.Lint(path)
	if err != nil {
		return fmt.Errorf("initial analysis failed: %w", err)
	}
	w.stats.record(1, len(findings.Findings))
	w.printFindings(findings)

	if err := w.addWatchDirs(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping watch mode")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)
		}
	}
}

// addWatchDirs registers the path and all its subdirectories
func (w *WatchMode) addWatchDirs(path string) error {
	return afero.Walk(w.fs, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := w.watcher.Add(p); err != nil {
				w.logger.Warn("Failed to watch directory", "path", p, "error", err)
			}
		}
		return nil
	})
}

// handleEvent records a change and (re)arms the debounce timer
func (w *WatchMode) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".go") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pendingChanges[event.Name] = time.Now()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceTime, w.flushPending)
}

// flushPending re-lints every file that changed since the last flush
func (w *WatchMode) flushPending() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pendingChanges))
	for path := range w.pendingChanges {
		changed = append(changed, path)
	}
	w.pendingChanges = make(map[string]time.Time)
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}

	findings := NewFindings()
	for _, path := range changed {
		// The cached entry is no longer trustworthy for a changed file
		if cache := w.linter.Cache(); cache != nil {
			cache.ClearFindings(NormalizePath(path))
		}

		fileFindings, err := w.linter.LintFile(path)
		if err != nil {
			w.logger.Error("Failed to re-lint file", "path", path, "error", err)
			continue
		}
		for _, f := range fileFindings {
			findings.Add(f)
		}
	}

	w.stats.record(len(changed), len(findings.Findings))
	w.printFindings(findings)
}

func (w *WatchMode) printFindings(findings *Findings) {
	out, err := w.formatter.Format(findings)
	if err != nil {
		w.logger.Error("Failed to format findings", "error", err)
		return
	}
	fmt.Print(string(out))
}
