package app

import (
	"context"
	"devcrawl/internal/core/errors"
	"devcrawl/internal/core/ports"
	"devcrawl/internal/engine/trace"
	"devcrawl/internal/shared/observability"
	"devcrawl/internal/ui/report"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Reformat reconstructs the call tree of a trace log and renders it. The log
// is only read.
func (s *Service) Reformat(ctx context.Context, req ports.ReformatRequest) (ports.ReformatResult, error) {
	_, span := observability.Tracer.Start(ctx, "Service.Reformat",
		oteltrace.WithAttributes(attribute.String("format", string(req.Format))))
	defer span.End()

	if err := trace.ValidateLog(req.LogPath); err != nil {
		return ports.ReformatResult{}, err
	}

	f, err := os.Open(req.LogPath)
	if err != nil {
		return ports.ReformatResult{}, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "open trace log"), errors.CtxPath, req.LogPath)
	}
	defer f.Close()

	rc, err := trace.Reconstruct(f)
	if err != nil {
		return ports.ReformatResult{}, errors.AddContext(err, errors.CtxPath, req.LogPath)
	}
	if rc.Corrupt > 0 {
		slog.Warn("trace log has undecodable records", "path", req.LogPath, "count", rc.Corrupt)
	}
	if len(rc.Mismatches) > 0 {
		slog.Warn("trace log has unmatched exits", "path", req.LogPath, "count", len(rc.Mismatches))
	}
	if w := rc.Warning(); w != nil {
		slog.Warn("trace log ends with open calls", "path", req.LogPath, "error", w)
	}

	started := time.Now()
	var out string
	switch req.Format {
	case ports.FormatText:
		out, err = report.RenderText(rc, req.Indent)
	case ports.FormatMarkdown:
		out, err = report.RenderMarkdown(rc, req.Indent, req.IncludeMermaid)
	default:
		return ports.ReformatResult{}, errors.New(errors.CodeNotSupported, fmt.Sprintf("unknown report format %q", req.Format))
	}
	observability.AnalysisDuration.WithLabelValues("render").Observe(time.Since(started).Seconds())
	if err != nil {
		return ports.ReformatResult{}, errors.Wrap(err, errors.CodeInternal, "render report")
	}

	res := ports.ReformatResult{Output: out, Reconstruction: rc}
	if req.OutputPath != "" {
		if err := report.WriteFile(req.OutputPath, out); err != nil {
			return res, errors.AddContext(errors.Wrap(err, errors.CodeInternal, "write report"), errors.CtxPath, req.OutputPath)
		}
		res.OutputPath = req.OutputPath
		slog.Info("report written", "path", req.OutputPath, "calls", rc.TotalCalls())
	}
	return res, nil
}
