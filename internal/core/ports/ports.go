package ports

import (
	"context"
	"devcrawl/internal/engine/trace"
	stderrors "errors"
	"time"
)

// InstrumentRequest defines one batch instrumentation for driving adapters.
type InstrumentRequest struct {
	Paths []string
	// ToFile bakes LogPath into every prelude; otherwise traces go to stderr.
	ToFile  bool
	LogPath string
	Suffix  string
	// Force replaces existing instrumented output without asking.
	Force bool
	// Overwrite is asked once per existing destination when Force is unset.
	// A nil callback declines.
	Overwrite      func(dest string) bool
	SkipFunctions  []string
	ExcludeScripts []string
	// Only restricts writing to these modules. Every script is still loaded
	// and checked, so cycles and ambiguity are caught on partial rebuilds.
	Only []string
}

// ScriptOutcome describes one script written by a batch.
type ScriptOutcome struct {
	Path         string
	Module       string
	Destination  string
	Existed      bool
	Functions    int
	SkippedFuncs int
	Rewrites     int
}

// ScriptFailure is a per-script problem that did not abort the batch.
type ScriptFailure struct {
	Path string
	Err  error
}

// BatchReport summarizes an instrumentation run. Batch-level failures are
// returned as errors instead and leave no report.
type BatchReport struct {
	// Order lists modules in processing order, dependencies first.
	Order        []string
	Instrumented []ScriptOutcome
	Failed       []ScriptFailure
	// Declined lists scripts whose existing output was kept.
	Declined []string
	Excluded []string
	Duration time.Duration
}

func (r *BatchReport) OK() bool {
	return len(r.Failed) == 0
}

// Err joins every per-script failure, or returns nil.
func (r *BatchReport) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return stderrors.Join(errs...)
}

type ReportFormat string

const (
	FormatText     ReportFormat = "text"
	FormatMarkdown ReportFormat = "markdown"
)

// ReformatRequest renders an existing trace log. The log is never modified.
type ReformatRequest struct {
	LogPath string
	Format  ReportFormat
	// OutputPath receives the rendered report; empty skips writing.
	OutputPath     string
	Indent         int
	IncludeMermaid bool
}

type ReformatResult struct {
	Output         string
	OutputPath     string
	Reconstruction *trace.Reconstruction
}

// WatchRequest re-instruments a batch whenever one of its scripts changes.
type WatchRequest struct {
	Instrument           InstrumentRequest
	Debounce             time.Duration
	MaxRebuildsPerSecond float64
	// OnBatch receives the outcome of the initial run and of every rebuild.
	OnBatch func(*BatchReport, error)
	// Reconfigure replaces the instrumentation settings and rebuilds the
	// whole batch. Paths of the new request are ignored.
	Reconfigure <-chan InstrumentRequest
}

// DebugService is the driving port used by the CLI.
type DebugService interface {
	Instrument(ctx context.Context, req InstrumentRequest) (*BatchReport, error)
	Reformat(ctx context.Context, req ReformatRequest) (ReformatResult, error)
	ClearLog(ctx context.Context, logPath string) (string, error)
	Strip(ctx context.Context, path, suffix string) ([]byte, error)
	Watch(ctx context.Context, req WatchRequest) error
}
