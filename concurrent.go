package restyle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
)

// Job represents a file to be linted
type Job struct {
	Path string
	Info os.FileInfo
}

// Result represents the findings reported for a file
type Result struct {
	Findings []Finding
	Error    error
}

// ConcurrentLinter provides parallel linting capabilities. Workers share
// the linter's single result cache; its internal lock keeps concurrent
// per-file updates consistent.
type ConcurrentLinter struct {
	*Restyle
	workerCount int
	bufferSize  int
	progress    ProgressReporter
	stats       *LintStats
}

// LintStats tracks performance metrics
type LintStats struct {
	filesProcessed atomic.Uint64
	totalFiles     atomic.Uint64
	startTime      time.Time
	endTime        time.Time
}

// FilesProcessed returns the number of files analyzed so far
func (s *LintStats) FilesProcessed() uint64 {
	return s.filesProcessed.Load()
}

// Duration returns the elapsed analysis time
func (s *LintStats) Duration() time.Duration {
	if s.endTime.IsZero() {
		return time.Since(s.startTime)
	}
	return s.endTime.Sub(s.startTime)
}

// ProgressReporter interface for progress updates
type ProgressReporter interface {
	StartFile(path string)
	CompleteFile(path string, findings int)
	UpdateProgress(current, total int)
	Complete(stats *LintStats)
}

// NoOpProgressReporter is a no-op implementation
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) StartFile(path string)                  {}
func (n *NoOpProgressReporter) CompleteFile(path string, findings int) {}
func (n *NoOpProgressReporter) UpdateProgress(current, total int)      {}
func (n *NoOpProgressReporter) Complete(stats *LintStats)              {}

// Option is a functional option for ConcurrentLinter
type Option func(*ConcurrentLinter) error

// WithWorkerCount sets the number of worker goroutines
func WithWorkerCount(count int) Option {
	return func(cl *ConcurrentLinter) error {
		if count < 1 {
			return fmt.Errorf("worker count must be at least 1, got %d", count)
		}
		cl.workerCount = count
		return nil
	}
}

// WithBufferSize sets the job buffer size
func WithBufferSize(size int) Option {
	return func(cl *ConcurrentLinter) error {
		if size < 1 {
			return fmt.Errorf("buffer size must be at least 1, got %d", size)
		}
		cl.bufferSize = size
		return nil
	}
}

// WithProgressReporter sets a progress reporter
func WithProgressReporter(reporter ProgressReporter) Option {
	return func(cl *ConcurrentLinter) error {
		cl.progress = reporter
		return nil
	}
}

// NewConcurrentLinter creates a new concurrent linter with options
func NewConcurrentLinter(cfg Config, version string, logger *slog.Logger, fs afero.Fs, opts ...Option) (*ConcurrentLinter, error) {
	base, err := NewLinter(cfg, version, logger, fs)
	if err != nil {
		return nil, err
	}

	cl := &ConcurrentLinter{
		Restyle:     base,
		workerCount: runtime.NumCPU(),
		bufferSize:  100,
		progress:    &NoOpProgressReporter{},
		stats:       &LintStats{},
	}

	for _, opt := range opts {
		if err := opt(cl); err != nil {
			return nil, err
		}
	}

	return cl, nil
}

// LintWithContext performs concurrent linting with context support
func (cl *ConcurrentLinter) LintWithContext(ctx context.Context, path string) (*Findings, error) {
	cl.stats = &LintStats{startTime: time.Now()}

	files, err := cl.collectFiles(ctx, path)
	if err != nil {
		return nil, err
	}

	cl.stats.totalFiles.Store(uint64(len(files)))
	cl.progress.UpdateProgress(0, len(files))

	findings, err := cl.processFilesConcurrently(ctx, files)
	if err != nil {
		return nil, err
	}

	if cl.cache != nil {
		if err := cl.cache.Save(cl.fs, cl.cfg.CacheFile); err != nil {
			cl.logger.Warn("Failed to save result cache", "path", cl.cfg.CacheFile, "error", err)
		}
	}

	cl.stats.endTime = time.Now()
	cl.progress.Complete(cl.stats)

	return findings, nil
}

// collectFiles walks the directory and collects all Go files
func (cl *ConcurrentLinter) collectFiles(ctx context.Context, path string) ([]Job, error) {
	var files []Job
	var mu sync.Mutex

	err := afero.Walk(cl.fs, path, func(filePath string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			cl.logger.Error("Failed walk", slog.String("file", filePath))
			return nil // Continue walking
		}

		if info.IsDir() {
			if cl.isExcluded(filePath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isGoFileFs(info) || cl.isExcluded(filePath) {
			return nil
		}

		mu.Lock()
		files = append(files, Job{Path: filePath, Info: info})
		mu.Unlock()

		return nil
	})

	return files, err
}

// processFilesConcurrently processes files using a worker pool
func (cl *ConcurrentLinter) processFilesConcurrently(ctx context.Context, files []Job) (*Findings, error) {
	jobs := make(chan Job, cl.bufferSize)
	results := make(chan Result, cl.bufferSize)

	var wg sync.WaitGroup
	for i := 0; i < cl.workerCount; i++ {
		wg.Add(1)
		go cl.worker(ctx, &wg, jobs, results)
	}

	findings := NewFindings()
	collectorDone := make(chan struct{})
	go cl.collectResults(findings, results, collectorDone)

	go func() {
		defer close(jobs)
		for _, file := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- file:
			}
		}
	}()

	wg.Wait()
	close(results)

	<-collectorDone

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return findings, nil
}

// worker processes jobs from the job channel
func (cl *ConcurrentLinter) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan Job, results chan<- Result) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			results <- Result{Error: ctx.Err()}
			return
		default:
		}

		cl.progress.StartFile(job.Path)
		fileFindings := cl.processFile(job)
		cl.stats.filesProcessed.Add(1)
		cl.progress.CompleteFile(job.Path, len(fileFindings))
		cl.progress.UpdateProgress(int(cl.stats.filesProcessed.Load()), int(cl.stats.totalFiles.Load()))

		results <- Result{Findings: fileFindings}
	}
}

// processFile lints one file, reusing cached findings when the file is
// unchanged since the last saved run
func (cl *ConcurrentLinter) processFile(job Job) []Finding {
	normalizedPath := NormalizePath(job.Path)

	if cl.cache != nil && !cl.isStale(job.Path, job.Info) {
		if cached, ok := cl.cache.Findings(normalizedPath); ok {
			for i := range cached {
				cached[i].Cached = true
			}
			return cached
		}
	}

	content, err := afero.ReadFile(cl.fs, job.Path)
	if err != nil {
		cl.logger.Error("Could not read file", "path", job.Path, "error", err)
		return nil
	}

	fileFindings := cl.checkRules(normalizedPath, content)
	if cl.cache != nil {
		cl.cache.SetFindings(fileFindings, normalizedPath)
	}
	return fileFindings
}

// collectResults gathers findings from the result channel
func (cl *ConcurrentLinter) collectResults(findings *Findings, results <-chan Result, done chan<- struct{}) {
	defer close(done)

	for result := range results {
		if result.Error != nil {
			cl.logger.Error("Worker failed", "error", result.Error)
			continue
		}
		for _, f := range result.Findings {
			findings.Add(f)
		}
	}
}
