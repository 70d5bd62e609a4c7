package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odvcencio/espboot/pkg/config"
	espErrors "github.com/odvcencio/espboot/pkg/errors"
	"github.com/odvcencio/espboot/pkg/logging"
	"github.com/odvcencio/espboot/pkg/orchestrator"
	"github.com/odvcencio/espboot/pkg/paths"
	"github.com/odvcencio/espboot/pkg/pipeline"
	"github.com/odvcencio/espboot/pkg/sourcesync"
	"github.com/odvcencio/espboot/pkg/telemetry"
	"github.com/odvcencio/espboot/pkg/terminal"
	"github.com/odvcencio/espboot/pkg/toolchain"
	"github.com/odvcencio/espboot/pkg/workspace"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

type cliOptions struct {
	dir         string
	configPath  string
	strict      bool
	timeout     time.Duration
	syncBackend string
	noSync      bool
	target      string
	quiet       bool
	noColor     bool
	logLevel    string
	showVersion bool
	check       bool

	// set holds the names of flags given explicitly.
	set map[string]bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{set: map[string]bool{}}
	fs := flag.NewFlagSet("espboot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dir, "C", "", "workspace directory (default $ESPBOOT_WORKSPACE or the current directory)")
	fs.StringVar(&opts.configPath, "config", "", "config file; replaces the user and project files")
	fs.BoolVar(&opts.strict, "strict", false, "stop at the first failing toolchain step")
	fs.DurationVar(&opts.timeout, "timeout", 0, "per-invocation timeout, e.g. 10m (0 disables)")
	fs.StringVar(&opts.syncBackend, "sync-backend", "", "submodule backend: cli or gogit")
	fs.BoolVar(&opts.noSync, "no-sync", false, "skip submodule synchronization")
	fs.StringVar(&opts.target, "target", "", "chip target exported as IDF_TARGET")
	fs.BoolVar(&opts.quiet, "quiet", false, "suppress informational notices")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")
	fs.StringVar(&opts.logLevel, "log-level", "", "diagnostic level: debug, info, warn, error")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	fs.BoolVar(&opts.check, "check", false, "check that required tools are installed and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: espboot [flags]")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Resets generated files, synchronizes submodules, then registers the")
		fmt.Fprintln(stderr, "GUI dependency, reconfigures and builds the firmware workspace.")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// applyFlags layers explicit flags over the loaded config.
func applyFlags(cfg *config.Config, opts *cliOptions) error {
	if opts.set["strict"] {
		cfg.Pipeline.Strict = opts.strict
	}
	if opts.set["timeout"] {
		cfg.Toolchain.Timeout = opts.timeout
	}
	if opts.set["sync-backend"] {
		cfg.Sync.Backend = opts.syncBackend
	}
	if opts.noSync {
		cfg.Sync.Enabled = false
	}
	if opts.set["target"] {
		cfg.Target = opts.target
	}
	if opts.set["log-level"] {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.noColor {
		cfg.Logging.NoColor = true
	}
	return cfg.Validate()
}

func loadConfig(root workspace.Root, opts *cliOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load(root.Dir())
	}
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, opts); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return exitCodeForError(withExitCode(err, exitUsage))
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "espboot %s (commit %s, built %s)\n", version, commit, buildDate)
		return exitOK
	}

	_, noColorEnv := os.LookupEnv("NO_COLOR")
	errOut := terminal.NewWithOutput(stderr, terminal.Options{NoColor: opts.noColor || noColorEnv})

	root, err := workspace.NewRoot(config.ResolveWorkspaceRoot(opts.dir))
	if err != nil {
		errOut.Error("%v", err)
		return exitUsage
	}

	cfg, err := loadConfig(root, opts)
	if err != nil {
		errOut.Error("loading config: %s", friendly(err))
		return exitCodeForError(err)
	}

	out := terminal.NewWithOutput(stdout, terminal.Options{NoColor: cfg.Logging.NoColor, Quiet: opts.quiet})
	logger := logging.NewSlog(stderr, cfg.Logging.Level, cfg.Logging.Format)
	runID := logging.NewRunID()
	logger = logger.With("run_id", runID)
	logger.Debug("configuration resolved", "workspace", root.Dir(), "config", cfg.Summary())

	probe := toolchain.NewProbe(toolchain.ProbeOptions{
		Dir:     root.Dir(),
		Binary:  cfg.Toolchain.Binary,
		Project: cfg.Toolchain.Project,
		DocsURL: cfg.Toolchain.DocsURL,
		Timeout: cfg.Toolchain.Timeout,
		Logger:  logger,
	})

	if opts.check {
		return runCheck(ctx, cfg, probe, stdout, out)
	}

	var synchronizer sourcesync.Synchronizer
	if cfg.Sync.Enabled {
		synchronizer, err = sourcesync.New(sourcesync.Options{
			Root:      root,
			Backend:   cfg.Sync.Backend,
			GitBinary: cfg.Sync.GitBinary,
			Strict:    cfg.Pipeline.Strict,
			Timeout:   cfg.Toolchain.Timeout,
			Stdout:    stdout,
			Stderr:    stderr,
			Logger:    logger,
		})
		if err != nil {
			errOut.Error("%s", friendly(err))
			return exitCodeForError(err)
		}
	}

	eventLog := openEventLog(root, cfg, runID, logger)
	defer eventLog.Close()

	metrics := telemetry.NewMetrics()
	tracing, err := telemetry.NewTracing(cfg.Telemetry.TraceFile, version, runID)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		tracing = nil
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	cleaner := workspace.NewCleaner(root, workspace.CleanerOptions{
		FailOnError: cfg.Cleanup.FailOnError,
		Notifier:    out,
		Logger:      logger,
	})
	seeder := workspace.NewSeeder(root, cfg.Defaults.SDKConfig, out, logger)

	newPipeline := func(handle toolchain.Handle) orchestrator.Pipeline {
		tc := toolchain.New(handle, toolchain.Options{
			Dir:     root.Dir(),
			Target:  cfg.Target,
			Timeout: cfg.Toolchain.Timeout,
			Stdout:  stdout,
			Stderr:  stderr,
			Logger:  logger,
		})
		return pipeline.New(pipeline.Options{
			Root:       root,
			Toolchain:  tc,
			Dependency: pipeline.DependencySpec{Name: cfg.Dependency.Name, Version: cfg.Dependency.Version},
			Strict:     cfg.Pipeline.Strict,
			Seeder:     seeder,
			Tracer:     tracing.Tracer(),
			Observer:   metrics,
			Logger:     logger,
		})
	}

	orch := orchestrator.New(orchestrator.Options{
		Cleaner:      cleaner,
		Synchronizer: synchronizer,
		Probe:        probe,
		NewPipeline:  newPipeline,
		Board:        cfg.Board,
		RunID:        runID,
		Notifier:     out,
		EventLog:     eventLog,
		Recorder:     metrics,
		Tracer:       tracing.Tracer(),
		Logger:       logger,
	})

	report, runErr := orch.Run(ctx)

	if path := cfg.Telemetry.MetricsFile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logger.Warn("metrics textfile not written", "path", path, "error", err)
		}
	}

	if runErr != nil {
		errOut.Println("%s", friendly(runErr))
		if coded, ok := espErrors.As(runErr); ok {
			for _, tip := range coded.Remediation {
				logger.Debug("remediation", "tip", tip)
			}
			logger.Debug("run aborted", "code", string(coded.Code), "stack", coded.StackTrace())
		}
		return exitCodeForError(runErr)
	}

	if lines := report.Summary(); len(lines) > 0 {
		out.Dim("%s", lines[len(lines)-1])
	}
	return exitOK
}

// runCheck reports every missing requirement without touching the workspace.
func runCheck(ctx context.Context, cfg *config.Config, probe *toolchain.Probe, stdout io.Writer, out *terminal.Writer) int {
	reqs := []toolchain.Requirement{toolchain.ToolchainRequirement(probe)}
	if cfg.Sync.Enabled && cfg.Sync.Backend == config.SyncBackendCLI {
		reqs = append(reqs, toolchain.GitRequirement(cfg.Sync.GitBinary))
	}

	missing := toolchain.NewChecker(reqs...).CheckAll(ctx)
	if len(missing) == 0 {
		names := make([]string, 0, len(reqs))
		for _, req := range reqs {
			names = append(names, req.Name)
		}
		out.Success("All requirements satisfied")
		out.List(names)
		return exitOK
	}
	toolchain.WriteReport(stdout, missing)
	return exitCodeForError(missing[0].Err)
}

func openEventLog(root workspace.Root, cfg *config.Config, runID string, logger *slog.Logger) *logging.EventLog {
	if !cfg.Logging.EventLog {
		return nil
	}
	path := paths.RunLogPath(root.Dir(), cfg.Logging.Dir, runID)
	log, err := logging.OpenEventLog(path, runID)
	if err != nil {
		logger.Warn("event log disabled", "path", path, "error", err)
		return nil
	}
	log.SetMinLevel(logging.Level(cfg.Logging.Level))
	logger.Debug("event log opened", "path", path)
	return log
}

func friendly(err error) string {
	if coded, ok := espErrors.As(err); ok {
		return coded.Friendly()
	}
	return err.Error()
}
