package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/charmbracelet/fang"
	"github.com/gophersatwork/restyle"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	// Configuration flags
	cfgFile     string
	path        string
	verbose     bool
	groupByRule bool

	// Performance flags
	workers    int
	concurrent bool

	// Output flags
	outputFormat string
	outputFile   string
	noColor      bool

	// Cache flags
	noCache    bool
	clearCache bool

	// Watch flag
	watch bool
)

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.restyle/config.yml)")
	rootCmd.PersistentFlags().StringVar(&path, "path", ".", "path to lint")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&groupByRule, "group-by-rule", false, "group findings by rule instead of by file")

	rootCmd.PersistentFlags().IntVar(&workers, "workers", runtime.NumCPU(), "number of worker goroutines for concurrent processing")
	rootCmd.PersistentFlags().BoolVar(&concurrent, "concurrent", true, "enable concurrent file processing")

	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "text", "output format: text, json, checkstyle")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output-file", "", "write output to file instead of stdout")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the result cache for this run")
	rootCmd.PersistentFlags().BoolVar(&clearCache, "clear-cache", false, "clear the result cache before running")

	rootCmd.PersistentFlags().BoolVar(&watch, "watch", false, "watch for file changes and re-lint")

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		handleError(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "restyle",
	Short:   "A style linter with incremental analysis",
	Version: restyle.Version,
	Long: `Restyle is a CLI tool that checks Go source trees against style rules.

Results are cached per file, so repeated runs over unchanged inputs skip
re-analysis entirely. The cache invalidates itself when the tool version
or the configuration changes.`,
	RunE: runLinter,
}

func runLinter(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	fs := afero.NewOsFs()

	cfg, err := restyle.LoadConfig(fs, path, cfgFile)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return err
	}

	if noCache {
		cfg.Incremental = false
	}
	if clearCache && cfg.CacheFile != "" {
		if err := os.Remove(cfg.CacheFile); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to clear result cache", "path", cfg.CacheFile, "error", err)
		}
	}

	if watch {
		return runWatchMode(cfg, logger, fs)
	}

	findings, err := lint(cfg, logger, fs)
	if err != nil {
		logger.Error("Linting failed", "error", err)
		return err
	}

	if err := printFindings(findings, fs); err != nil {
		return err
	}

	if findings.HasErrors() {
		return restyle.ErrLint
	}
	return nil
}

func lint(cfg restyle.Config, logger *slog.Logger, fs afero.Fs) (*restyle.Findings, error) {
	if concurrent {
		linter, err := restyle.NewConcurrentLinter(cfg, restyle.Version, logger, fs,
			restyle.WithWorkerCount(workers))
		if err != nil {
			return nil, err
		}
		return linter.LintWithContext(context.Background(), path)
	}

	linter, err := restyle.NewLinter(cfg, restyle.Version, logger, fs)
	if err != nil {
		return nil, err
	}
	return linter.Lint(path)
}

func runWatchMode(cfg restyle.Config, logger *slog.Logger, fs afero.Fs) error {
	wm, err := restyle.NewWatchMode(restyle.WatchConfig{
		Config:  cfg,
		Version: restyle.Version,
		Logger:  logger,
		FS:      fs,
		Formatter: &restyle.ColoredTextFormatter{
			Fs:           fs,
			ContextLines: 2,
			NoColor:      noColor,
		},
	})
	if err != nil {
		return err
	}
	return wm.Start(context.Background(), path)
}

func printFindings(findings *restyle.Findings, fs afero.Fs) error {
	var formatter restyle.Formatter

	if outputFormat == "text" && outputFile == "" {
		formatter = &restyle.ColoredTextFormatter{
			Fs:           fs,
			ContextLines: 2,
			NoColor:      noColor,
		}
	} else {
		f, err := restyle.NewFormatter(restyle.OutputFormat(outputFormat))
		if err != nil {
			return err
		}
		if tf, ok := f.(*restyle.TextFormatter); ok {
			tf.GroupByRule = groupByRule
		}
		formatter = f
	}

	out, err := formatter.Format(findings)
	if err != nil {
		return err
	}

	if outputFile != "" {
		return os.WriteFile(outputFile, out, 0o644)
	}
	fmt.Print(string(out))
	return nil
}

func setupLogger() *slog.Logger {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func handleError(err error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	var findings *restyle.Findings
	if errors.As(err, &findings) {
		logger.Error("Style rules violated", "details", findings.Error())
		return
	}
	if errors.Is(err, restyle.ErrLint) {
		logger.Error("Style rules violated")
		return
	}

	if info, found := restyle.GetErrorInfo(err); found {
		logger.Error("Command failed", "error", err, "error_type", info.Type)
		if info.File != "" {
			logger.Error("File information", "file", info.File)
		}
		if info.Details != "" {
			logger.Error("Additional details", "details", info.Details)
		}
		return
	}

	logger.Error("Command failed", "error", err)
}
