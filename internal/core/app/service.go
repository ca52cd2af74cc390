// # internal/core/app/service.go
package app

import (
	"context"
	"devcrawl/internal/core/errors"
	"devcrawl/internal/core/ports"
	"devcrawl/internal/engine/graph"
	"devcrawl/internal/engine/instrument"
	"devcrawl/internal/engine/parser"
	"devcrawl/internal/engine/trace"
	"devcrawl/internal/shared/observability"
	"devcrawl/internal/shared/util"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Service runs the devcrawl use cases. It holds no per-batch state, so one
// Service may serve several batches in sequence.
type Service struct {
	parser *parser.Parser
}

var _ ports.DebugService = (*Service)(nil)

func NewService() *Service {
	return &Service{parser: parser.NewParser()}
}

// Instrument writes an instrumented sibling for every script of the batch.
// Reentrant input, ambiguous module names and import cycles abort the batch
// before anything is written. Scripts that fail to parse are reported and
// skipped; their dependents keep importing the original module.
func (s *Service) Instrument(ctx context.Context, req ports.InstrumentRequest) (*ports.BatchReport, error) {
	ctx, span := observability.Tracer.Start(ctx, "Service.Instrument",
		oteltrace.WithAttributes(attribute.Int("scripts.requested", len(req.Paths))))
	defer span.End()
	started := time.Now()

	if len(req.Paths) == 0 {
		return nil, errors.New(errors.CodeValidationError, "no scripts given")
	}
	suffix := req.Suffix
	if suffix == "" {
		suffix = instrument.DefaultSuffix
	}
	if req.ToFile && req.LogPath == "" {
		return nil, errors.New(errors.CodeValidationError, "log path is required for the file sink")
	}

	exclude, err := util.CompilePathPatterns(req.ExcludeScripts, '/')
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "exclude_scripts")
	}
	paths, excluded, err := normalizeBatch(req.Paths, exclude)
	if err != nil {
		return nil, err
	}
	report := &ports.BatchReport{Excluded: excluded}
	for range excluded {
		recordOutcome("excluded")
	}
	if len(paths) == 0 {
		report.Duration = time.Since(started)
		return report, nil
	}

	loaded, err := s.loadBatch(ctx, paths)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, "load_batch")
	}
	if err := checkModuleNames(loaded); err != nil {
		return nil, err
	}

	parsed := make([]*parser.Script, 0, len(loaded))
	for _, l := range loaded {
		if err := instrument.CheckReentrant(l.Path, l.Source, suffix); err != nil {
			return nil, err
		}
		if l.Err != nil {
			slog.Warn("script does not parse; skipping", "path", l.Path, "error", l.Err)
			report.Failed = append(report.Failed, ports.ScriptFailure{Path: l.Path, Err: l.Err})
			recordOutcome("failed")
			continue
		}
		parsed = append(parsed, l.Script)
	}

	g, err := graph.NewBatchGraph(parsed)
	if err != nil {
		return nil, err
	}
	ordered, err := g.Order()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("scripts.parsed", len(parsed)),
		attribute.Int("graph.edges", g.EdgeCount()),
	)

	sink := ""
	if req.ToFile {
		created, err := trace.EnsureLog(req.LogPath)
		if err != nil {
			return nil, err
		}
		if created {
			slog.Info("created trace log", "path", req.LogPath)
		}
		sink = req.LogPath
	}

	members := &batchMembers{graph: g, failed: make(map[string]bool)}
	transformer, err := instrument.NewTransformer(members, instrument.Options{
		Suffix:        suffix,
		Sink:          sink,
		SkipFunctions: req.SkipFunctions,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "skip_functions")
	}
	emitter := instrument.Emitter{Suffix: suffix}

	only := make(map[string]bool, len(req.Only))
	for _, m := range req.Only {
		only[m] = true
	}

	for _, script := range ordered {
		report.Order = append(report.Order, script.Module)
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if len(only) > 0 && !only[script.Module] {
			continue
		}

		outcome, declined, err := s.instrumentScript(transformer, emitter, script, req)
		switch {
		case err != nil:
			slog.Error("failed to instrument script", "path", script.Path, "error", err)
			// Importers emitted later keep pointing at the original module.
			members.failed[script.Module] = true
			report.Failed = append(report.Failed, ports.ScriptFailure{Path: script.Path, Err: err})
			recordOutcome("failed")
		case declined:
			slog.Info("kept existing instrumented script", "path", outcome.Destination)
			report.Declined = append(report.Declined, script.Path)
			recordOutcome("declined")
		default:
			slog.Debug("instrumented script",
				"path", script.Path,
				"destination", outcome.Destination,
				"functions", outcome.Functions,
				"rewrites", outcome.Rewrites)
			report.Instrumented = append(report.Instrumented, outcome)
			recordOutcome("instrumented")
		}
	}

	report.Duration = time.Since(started)
	slog.Info("batch instrumented",
		"scripts", len(report.Instrumented),
		"failed", len(report.Failed),
		"declined", len(report.Declined),
		"duration", report.Duration)
	return report, nil
}

// batchMembers is the registry imports are rewritten against: the batch minus
// every member whose instrumented sibling could not be written.
type batchMembers struct {
	graph  *graph.BatchGraph
	failed map[string]bool
}

func (m *batchMembers) Has(module string) bool {
	return m.graph.Has(module) && !m.failed[module]
}

func (s *Service) instrumentScript(t *instrument.Transformer, e instrument.Emitter, script *parser.Script, req ports.InstrumentRequest) (ports.ScriptOutcome, bool, error) {
	dest := instrument.DebugPath(script.Path, e.Suffix)
	outcome := ports.ScriptOutcome{Path: script.Path, Module: script.Module, Destination: dest}

	res, err := t.Transform(script)
	if err != nil {
		return outcome, false, err
	}
	content, err := res.Render()
	if err != nil {
		return outcome, false, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "render instrumented script"), errors.CtxPath, script.Path)
	}
	if err := s.parser.Validate(dest, content); err != nil {
		return outcome, false, errors.AddContext(
			errors.Wrap(err, errors.CodeInternal, "instrumented output does not parse"),
			errors.CtxPath, script.Path)
	}

	overwrite := req.Force
	if !overwrite {
		if _, err := os.Lstat(dest); err == nil {
			if req.Overwrite == nil || !req.Overwrite(dest) {
				outcome.Existed = true
				return outcome, true, nil
			}
			overwrite = true
		}
	}

	emitted, err := e.Write(script.Path, content, overwrite)
	if err != nil {
		return outcome, false, err
	}
	outcome.Existed = emitted.Existed
	outcome.Functions = len(res.Instrumented)
	outcome.SkippedFuncs = len(res.Skipped)
	outcome.Rewrites = len(res.Rewrites)
	return outcome, false, nil
}

// ClearLog truncates the trace log and writes a fresh header.
func (s *Service) ClearLog(ctx context.Context, logPath string) (string, error) {
	_, span := observability.Tracer.Start(ctx, "Service.ClearLog")
	defer span.End()

	if logPath == "" {
		return "", errors.New(errors.CodeValidationError, "log path is required")
	}
	runID, err := trace.ResetLog(logPath)
	if err != nil {
		return "", err
	}
	slog.Info("trace log cleared", "path", logPath, "run", runID)
	return runID, nil
}

// Strip returns the original source of an instrumented script.
func (s *Service) Strip(ctx context.Context, path, suffix string) ([]byte, error) {
	_, span := observability.Tracer.Start(ctx, "Service.Strip")
	defer span.End()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read instrumented script"), errors.CtxPath, path)
	}
	out, err := instrument.Strip(s.parser, path, content, suffix)
	if err != nil {
		return nil, fmt.Errorf("strip %s: %w", path, err)
	}
	return out, nil
}
