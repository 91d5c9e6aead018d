// Package engine drives one CLI invocation: it opens the project, wires the
// orchestrator to output sinks and metrics, runs, and maps the result to an
// exit code.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"sidas/internal/config"
	"sidas/internal/materialize"
	"sidas/internal/observability"
	"sidas/internal/orchestrator"
	"sidas/internal/output"
	"sidas/internal/project"
	"sidas/internal/schedule"
	"sidas/internal/staleness"
)

// Exit codes returned by Run.
const (
	ExitOK        = 0
	ExitFailures  = 1
	ExitCancelled = 2
	ExitFatal     = 3
)

func exitCodeForRun(fatal, cancelled, failures bool) int {
	// 0 = every asset succeeded or was fresh
	// 1 = at least one asset failed
	// 2 = the run was cancelled or timed out before finishing
	// 3 = fatal error (the run did not start)
	switch {
	case fatal:
		return ExitFatal
	case cancelled:
		return ExitCancelled
	case failures:
		return ExitFailures
	default:
		return ExitOK
	}
}

type Engine struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

type Option func(*Engine)

// WithOutput redirects console output and diagnostics.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(e *Engine) { e.stdout, e.stderr = stdout, stderr }
}

// WithClock overrides time.Now for staleness and lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{stdout: os.Stdout, stderr: os.Stderr, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) fatalf(format string, args ...any) int {
	fmt.Fprintf(e.stderr, "Error: "+format+"\n", args...)
	return exitCodeForRun(true, false, false)
}

// Logger builds the diagnostics logger for cfg, writing to stderr.
func (e *Engine) Logger(cfg *config.Config) (*slog.Logger, error) {
	return config.NewLogger(e.stderr, cfg.Logging)
}

// Open loads the configured project and builds an orchestrator over it.
// The caller closes the project.
func (e *Engine) Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts orchestrator.Options) (*project.Project, *orchestrator.Orchestrator, error) {
	p, err := project.Open(ctx, cfg.Project.Path)
	if err != nil {
		return nil, nil, err
	}
	orch, err := e.orchestrator(p, cfg, logger, opts)
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return p, orch, nil
}

func (e *Engine) orchestrator(p *project.Project, cfg *config.Config, logger *slog.Logger, opts orchestrator.Options) (*orchestrator.Orchestrator, error) {
	evaluator := staleness.New(schedule.New(p.Location))
	mat := materialize.New(
		materialize.WithStrategy(p.Strategy),
		materialize.WithLogger(logger),
		materialize.WithClock(e.now),
	)
	opts.Concurrency = cfg.Runtime.Concurrency
	opts.DispatchRate = cfg.Runtime.DispatchRate
	opts.Logger = logger
	opts.Now = e.now
	return orchestrator.New(p.Registry, p.Store, evaluator, mat, opts)
}

// Run materializes target (every asset when empty) and returns the exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config, target string) int {
	logger, err := e.Logger(cfg)
	if err != nil {
		return e.fatalf("%v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	outMgr, err := e.setupOutputManager(cfg)
	if err != nil {
		return e.fatalf("%v", err)
	}
	defer func() {
		if err := outMgr.Close(); err != nil {
			logger.Warn("closing outputs failed", slog.String("error", err.Error()))
		}
	}()

	var recorder orchestrator.Recorder
	if cfg.Runtime.MetricsAddr != "" {
		metrics, stop, err := serveMetrics(ctx, cfg.Runtime.MetricsAddr, logger)
		if err != nil {
			return e.fatalf("metrics: %v", err)
		}
		defer stop()
		recorder = metrics
	}

	write := func(ev output.Event) {
		if err := outMgr.Write(ev); err != nil {
			logger.Warn("output write failed", slog.String("event", ev.Type), slog.String("error", err.Error()))
		}
	}
	var runID string
	p, orch, err := e.Open(ctx, cfg, logger, orchestrator.Options{
		Recorder: recorder,
		OnStart: func(id, target string, assets int) {
			runID = id
			write(output.RunStarted(id, target, assets, e.now()))
		},
		OnOutcome: func(o orchestrator.Outcome) {
			write(output.AssetResult(runID, o, e.now()))
		},
	})
	if err != nil {
		return e.fatalf("%v", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("closing project failed", slog.String("error", err.Error()))
		}
	}()

	report, err := orch.Run(ctx, target)
	if err != nil {
		return e.fatalf("%v", err)
	}

	code := exitCodeForRun(false, report.Cancelled, report.HasFailures())
	write(output.RunFinished(report, code))
	if report.Cancelled && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		fmt.Fprintf(e.stderr, "Run timed out after %s\n", cfg.Runtime.Timeout)
	}
	return code
}

func (e *Engine) setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	outMgr := output.NewManager()
	add := func(s output.Sink, err error) error {
		if err == nil {
			err = outMgr.AddSink(s)
		}
		if err != nil {
			_ = outMgr.Close()
		}
		return err
	}

	if !cfg.Output.NoConsole {
		if err := add(output.NewConsoleSink(e.stdout, cfg.Output.ConsoleFormat, cfg.Output.ConsoleFilterStatus), nil); err != nil {
			return nil, err
		}
	}
	for _, emit := range cfg.Output.Emit {
		if err := add(output.NewEmitSink(e.stdout, emit)); err != nil {
			return nil, err
		}
	}
	if cfg.Output.Out != "" {
		if err := add(output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)); err != nil {
			return nil, err
		}
	}
	if cfg.Output.Report != "" {
		if err := add(output.NewReportSink(cfg.Output.Report)); err != nil {
			return nil, err
		}
	}
	if len(cfg.Output.KafkaBrokers) > 0 {
		if err := add(output.NewKafkaSink(output.KafkaConfig{Brokers: cfg.Output.KafkaBrokers, Topic: cfg.Output.KafkaTopic})); err != nil {
			return nil, err
		}
	}
	return outMgr, nil
}

// serveMetrics exposes /metrics on addr until stop is called.
func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) (*observability.Metrics, func(), error) {
	metrics, handler, err := observability.NewMetrics(ctx)
	if err != nil {
		return nil, nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = metrics.Shutdown(ctx)
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = metrics.Shutdown(shutdownCtx)
	}
	return metrics, stop, nil
}
