// # internal/core/app/watch.go
package app

import (
	"context"
	"devcrawl/internal/core/errors"
	"devcrawl/internal/core/ports"
	"devcrawl/internal/core/watcher"
	"devcrawl/internal/engine/graph"
	"devcrawl/internal/engine/instrument"
	"devcrawl/internal/engine/parser"
	"devcrawl/internal/shared/util"
	"log/slog"
)

// Watch instruments the batch once, then rebuilds every time a script
// changes, until ctx is done. Rebuilds replace existing output without
// asking and only rewrite the changed scripts and their dependents. A failed
// run is reported through OnBatch and watching continues.
func (s *Service) Watch(ctx context.Context, req ports.WatchRequest) error {
	notify := req.OnBatch
	if notify == nil {
		notify = func(*ports.BatchReport, error) {}
	}
	if req.MaxRebuildsPerSecond <= 0 {
		return errors.New(errors.CodeValidationError, "max rebuilds per second must be positive")
	}

	base := req.Instrument
	suffix := base.Suffix
	if suffix == "" {
		suffix = instrument.DefaultSuffix
	}

	exclude, err := util.CompilePathPatterns(base.ExcludeScripts, '/')
	if err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "exclude_scripts")
	}
	paths, _, err := normalizeBatch(base.Paths, exclude)
	if err != nil {
		return err
	}

	notify(s.Instrument(ctx, base))

	changes := make(chan []string, 16)
	w, err := watcher.NewWatcher(req.Debounce, []string{"*" + suffix + ".py"}, func(changed []string) {
		select {
		case changes <- changed:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "start watcher")
	}
	defer w.Close()
	if err := w.Watch(paths); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "watch scripts")
	}
	throttle := util.NewThrottle(req.MaxRebuildsPerSecond)
	slog.Info("watching scripts", "count", len(paths), "debounce", req.Debounce, "min_interval", throttle.Interval())

	for {
		var only []string
		select {
		case <-ctx.Done():
			return nil

		case next, ok := <-req.Reconfigure:
			if !ok {
				req.Reconfigure = nil
				continue
			}
			next.Paths = base.Paths
			base = next
			slog.Info("settings changed, rebuilding batch")

		case changed := <-changes:
			changed = drainChanges(changes, changed)
			only, err = s.affectedModules(ctx, paths, changed)
			if err != nil {
				notify(nil, err)
				continue
			}
			if len(only) == 0 {
				continue
			}
			slog.Info("scripts changed, rebuilding", "changed", len(changed), "affected", len(only))
		}

		if err := throttle.Wait(ctx); err != nil {
			return nil
		}
		rebuild := base
		rebuild.Force = true
		rebuild.Only = only
		notify(s.Instrument(ctx, rebuild))
	}
}

// drainChanges merges change sets that queued up during a rebuild.
func drainChanges(changes <-chan []string, first []string) []string {
	seen := make(map[string]bool, len(first))
	for _, p := range first {
		seen[p] = true
	}
	for {
		select {
		case more := <-changes:
			for _, p := range more {
				seen[p] = true
			}
		default:
			return util.SortedStringKeys(seen)
		}
	}
}

// affectedModules returns the modules of changed plus every batch member that
// imports them, directly or transitively, in input order. Scripts that do
// not parse still take part as import targets.
func (s *Service) affectedModules(ctx context.Context, paths, changed []string) ([]string, error) {
	loaded, err := s.loadBatch(ctx, paths)
	if err != nil {
		return nil, err
	}
	scripts := make([]*parser.Script, 0, len(loaded))
	for _, l := range loaded {
		if l.Script != nil {
			scripts = append(scripts, l.Script)
			continue
		}
		scripts = append(scripts, &parser.Script{Path: l.Path, Module: l.Module, Source: l.Source})
	}
	g, err := graph.NewBatchGraph(scripts)
	if err != nil {
		return nil, err
	}

	modules := make([]string, 0, len(changed))
	for _, p := range changed {
		modules = append(modules, parser.ModuleName(p))
	}
	return g.AnalyzeImpact(modules...).Affected(g), nil
}
