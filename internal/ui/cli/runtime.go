package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	coreapp "yarasynth/internal/core/app"
	"yarasynth/internal/core/config"
	"yarasynth/internal/core/ports"
	"yarasynth/internal/shared/observability"
)

const (
	exitOK          = 0
	exitFatal       = 1
	exitUsage       = 2
	exitJobFailures = 3
)

const shutdownTimeout = 5 * time.Second

func Run(args []string) int {
	return execute(context.Background(), args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code := exitOK
	root := newRootCommand(stdout, stderr, &code)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		fmt.Fprintln(stderr, "run 'yarasynth --help' for usage")
		return exitUsage
	}
	return code
}

func runSynthesis(ctx context.Context, opts cliOptions, explicitConfig bool, stdout, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}
	configureLogging(stdout, opts.verbose)

	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("failed to load .env file", "error", err)
	}

	if err := validateResultDirectory(opts.resultDir); err != nil {
		return fatal(stderr, "invalid result directory", err)
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, explicitConfig)
	if err != nil {
		return fatal(stderr, "failed to load config", err)
	}
	if cfg.General.Verbose && !opts.verbose {
		configureLogging(stdout, true)
	}
	slog.Debug("configuration loaded", "path", cfgPath)

	cfg.Denylist = config.LoadDenylist(opts.identifiersPath)

	if err := config.PrepareOutput(cfg); err != nil {
		return fatal(stderr, "failed to prepare output directory", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint)
	if err != nil {
		return fatal(stderr, "failed to initialize tracing", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	if cfg.Observability.MetricsAddress != "" {
		server := NewObservabilityServer(cfg.Observability.MetricsAddress)
		if err := server.Start(ctx); err != nil {
			return fatal(stderr, "failed to start metrics server", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = server.Stop(sctx)
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := coreapp.New(cfg)
	if err != nil {
		return fatal(stderr, "failed to initialize app", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("failed to close dedup ledger", "error", err)
		}
	}()

	summary, err := app.Run(ctx, opts.resultDir, opts.watch)
	if err != nil {
		return fatal(stderr, "rule synthesis failed", err)
	}
	logSummary(summary)

	if (opts.strict || cfg.General.StrictExit) && summary.Failed > 0 {
		fmt.Fprintf(stderr, "%d package job(s) failed\n", summary.Failed)
		return exitJobFailures
	}
	return exitOK
}

func fatal(stderr io.Writer, msg string, err error) int {
	slog.Error(msg, "error", err)
	fmt.Fprintf(stderr, "%s: %v\n", msg, err)
	return exitFatal
}

func validateResultDirectory(dir string) error {
	if dir == "" {
		return errors.New("--result-directory must not be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// loadConfig loads the config at path. When the flag was not given, the working directory
// candidates are tried in order.
func loadConfig(path string, explicit bool) (*config.Config, string, error) {
	if explicit {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	var lastErr error
	for _, candidate := range defaultConfigCandidates() {
		cfg, err := config.Load(candidate)
		if err == nil {
			return cfg, candidate, nil
		}
		if _, statErr := os.Stat(candidate); os.IsNotExist(statErr) {
			lastErr = err
			continue
		}
		return nil, "", err
	}
	if lastErr != nil {
		return nil, "", lastErr
	}
	return nil, "", fmt.Errorf("no default config file found")
}

func defaultConfigCandidates() []string {
	return []string{
		filepath.Clean(defaultConfigPath),
		filepath.Clean("config/yarasynth.toml"),
	}
}

func logSummary(summary ports.RunSummary) {
	slog.Info("rule synthesis finished",
		"queued", summary.Queued,
		"processed", summary.Processed,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
		"retried", summary.Retried,
		"rules", summary.RulesWritten,
		"duration", summary.Duration.Round(time.Millisecond),
		"heap_mb", heapAllocMB(),
	)
}

// heapAllocMB reports live heap bytes in MiB for the run summary.
func heapAllocMB() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc >> 20
}

func configureLogging(output io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
