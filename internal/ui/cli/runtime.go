package cli

import (
	"context"
	coreapp "devcrawl/internal/core/app"
	"devcrawl/internal/core/config"
	"devcrawl/internal/core/errors"
	"devcrawl/internal/core/ports"
	"devcrawl/internal/shared/observability"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"
)

// streams are the process handles a session talks to.
type streams struct {
	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
}

// exitError carries a process exit status out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func fail(err error) error {
	return &exitError{code: exitFailure, err: err}
}

func usage(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

type session struct {
	opts       cliOptions
	io         streams
	newService func() ports.DebugService

	cfg             *config.Config
	cwd             string
	paths           config.ResolvedPaths
	service         ports.DebugService
	shutdownTracing func(context.Context) error
}

func Run(args []string) int {
	std := streams{
		in:          os.Stdin,
		out:         os.Stdout,
		errOut:      os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
	return run(args, std, func() ports.DebugService { return coreapp.NewService() })
}

func run(args []string, std streams, newService func() ports.DebugService) int {
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	s := &session{io: std, newService: newService}
	root := newRootCommand(s)
	root.SetArgs(args)
	root.SetIn(std.in)
	root.SetOut(std.out)
	root.SetErr(std.errOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	s.finish()
	if err == nil {
		return exitOK
	}

	var exit *exitError
	if stderrors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintf(std.errOut, "Error: %v\n", exit.err)
		}
		return exit.code
	}
	// Flag parsing and argument validation errors come straight from cobra.
	fmt.Fprintf(std.errOut, "Error: %v\n", err)
	fmt.Fprintln(std.errOut, "Run 'devcrawl --help' for usage.")
	return exitUsage
}

// prepare runs before every command: logging, .env, config, flag overrides
// and tracing.
func (s *session) prepare(explicitConfig bool) error {
	configureLogging(s.io.errOut, s.opts.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		return fail(fmt.Errorf("detect working directory: %w", err))
	}
	s.cwd = cwd

	if err := config.LoadDotEnv(filepath.Join(cwd, ".env")); err != nil {
		return fail(err)
	}
	cfg, err := config.LoadOrDefault(config.ResolveRelative(cwd, s.opts.configPath), explicitConfig)
	if err != nil {
		return fail(fmt.Errorf("load config: %w", err))
	}
	applyFlagOverrides(cfg, s.opts)
	s.cfg = cfg

	s.paths, err = config.ResolvePaths(cfg, cwd)
	if err != nil {
		return fail(err)
	}

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.SetupTracing(context.Background(), cfg.Observability.OTLPEndpoint, cfg.Observability.Insecure)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			s.shutdownTracing = shutdown
		}
	}

	s.service = s.newService()
	return nil
}

func applyFlagOverrides(cfg *config.Config, opts cliOptions) {
	if opts.debugToFile {
		cfg.Output.Sink = config.SinkFile
	}
	if opts.output != "" {
		cfg.Output.Sink = config.SinkFile
		cfg.Output.LogPath = opts.output
	}
	if opts.force {
		cfg.Output.Force = true
	}
}

func (s *session) finish() {
	if s.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.shutdownTracing(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
	if s.cfg != nil && s.cfg.Observability.MetricsFile != "" {
		path := config.ResolveRelative(s.cwd, s.cfg.Observability.MetricsFile)
		if err := observability.WriteMetricsFile(path); err != nil {
			slog.Warn("failed to write metrics file", "path", path, "error", err)
		}
	}
}

func (s *session) runRoot(ctx context.Context) error {
	opts := s.opts
	reformat := opts.reformatLog != "" || opts.reformatLogMD != ""

	switch {
	case opts.clearLog:
		if reformat || len(opts.args) > 0 || opts.watch {
			return usage("--clear-debug-log cannot be combined with scripts or report flags")
		}
		return s.runClearLog(ctx)
	case reformat:
		if len(opts.args) > 0 || opts.watch {
			return usage("report flags cannot be combined with scripts or --watch")
		}
		return s.runReformat(ctx)
	case len(opts.args) == 0:
		return usage("no scripts given")
	case opts.watch:
		return s.runWatch(ctx)
	default:
		return s.runInstrument(ctx)
	}
}

func (s *session) instrumentRequest() ports.InstrumentRequest {
	req := ports.InstrumentRequest{
		Paths:          s.opts.args,
		ToFile:         s.cfg.Output.Sink == config.SinkFile,
		LogPath:        s.paths.LogPath,
		Suffix:         s.cfg.Output.Suffix,
		Force:          s.cfg.Output.Force,
		SkipFunctions:  s.cfg.Instrument.SkipFunctions,
		ExcludeScripts: s.cfg.Instrument.ExcludeScripts,
	}
	if !req.Force {
		req.Overwrite = confirmOverwrite(s.io)
	}
	return req
}

func (s *session) runInstrument(ctx context.Context) error {
	report, err := s.service.Instrument(ctx, s.instrumentRequest())
	if err != nil {
		return fail(describe(err))
	}
	printBatchSummary(s.io.out, report)
	if !report.OK() {
		return &exitError{code: exitFailure}
	}
	return nil
}

func (s *session) runReformat(ctx context.Context) error {
	if s.opts.reformatLog != "" {
		logPath := config.ResolveRelative(s.cwd, s.opts.reformatLog)
		res, err := s.service.Reformat(ctx, ports.ReformatRequest{
			LogPath:    logPath,
			Format:     ports.FormatText,
			OutputPath: logPath + s.cfg.Report.TextSuffix,
			Indent:     s.cfg.Report.Indent,
		})
		if err != nil {
			return fail(describe(err))
		}
		fmt.Fprint(s.io.out, res.Output)
		printReportNotice(s.io.errOut, "Text report has been generated as "+res.OutputPath, res.Reconstruction)
	}

	if s.opts.reformatLogMD != "" {
		logPath := config.ResolveRelative(s.cwd, s.opts.reformatLogMD)
		res, err := s.service.Reformat(ctx, ports.ReformatRequest{
			LogPath:        logPath,
			Format:         ports.FormatMarkdown,
			OutputPath:     s.paths.MarkdownPath,
			Indent:         s.cfg.Report.Indent,
			IncludeMermaid: s.cfg.MermaidEnabled(),
		})
		if err != nil {
			return fail(describe(err))
		}
		printReportNotice(s.io.out, "Markdown formatted log has been generated as "+res.OutputPath, res.Reconstruction)
	}
	return nil
}

func (s *session) runClearLog(ctx context.Context) error {
	if _, err := s.service.ClearLog(ctx, s.paths.LogPath); err != nil {
		return fail(err)
	}
	fmt.Fprintf(s.io.out, "%s has been initialized.\n", s.paths.LogPath)
	return nil
}

func (s *session) runStrip(ctx context.Context, path string) error {
	out, err := s.service.Strip(ctx, config.ResolveRelative(s.cwd, path), s.cfg.Output.Suffix)
	if err != nil {
		return fail(describe(err))
	}
	_, err = s.io.out.Write(out)
	return err
}

func (s *session) runWatch(ctx context.Context) error {
	health := coreapp.NewHealthService()
	if addr := s.cfg.Observability.MetricsAddr; addr != "" {
		server := NewObservabilityServer(addr, health)
		if err := server.Start(ctx); err != nil {
			return fail(err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	reconfigure := make(chan ports.InstrumentRequest, 1)
	configPath := config.ResolveRelative(s.cwd, s.opts.configPath)
	if _, err := os.Stat(configPath); err == nil {
		cw := config.NewReloader(configPath, func(cfg *config.Config) {
			applyFlagOverrides(cfg, s.opts)
			paths, err := config.ResolvePaths(cfg, s.cwd)
			if err != nil {
				slog.Error("ignoring reloaded config", "error", err)
				return
			}
			s.cfg, s.paths = cfg, paths
			select {
			case reconfigure <- s.instrumentRequest():
			default:
			}
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config file will not be reloaded", "path", configPath, "error", err)
		} else {
			defer cw.Stop()
		}
	}

	err := s.service.Watch(ctx, ports.WatchRequest{
		Instrument:           s.instrumentRequest(),
		Debounce:             s.cfg.Watch.Debounce,
		MaxRebuildsPerSecond: s.cfg.Watch.MaxRebuildsPerSecond,
		Reconfigure:          reconfigure,
		OnBatch: func(report *ports.BatchReport, err error) {
			health.Record(report, err)
			if err != nil {
				fmt.Fprintf(s.io.errOut, "Error: %v\n", describe(err))
				return
			}
			printBatchSummary(s.io.out, report)
		},
	})
	if err != nil {
		return fail(describe(err))
	}
	return nil
}

// describe adds a hint for the errors a user can act on.
func describe(err error) error {
	switch errors.CodeOf(err) {
	case errors.CodeDependencyCycle:
		return fmt.Errorf("%w (scripts of a batch must not import each other in a loop)", err)
	case errors.CodeReentrant:
		return fmt.Errorf("%w (pass the original scripts, not their instrumented copies)", err)
	case errors.CodeInvalidLog:
		return fmt.Errorf("the specified log file is not valid: %w", err)
	}
	return err
}

func configureLogging(out io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
