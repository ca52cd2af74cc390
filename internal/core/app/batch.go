// # internal/core/app/batch.go
package app

import (
	"context"
	"devcrawl/internal/core/errors"
	"devcrawl/internal/engine/parser"
	"devcrawl/internal/shared/observability"
	"devcrawl/internal/shared/util"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// loadedScript is one batch member after reading and parsing. Script is nil
// when parsing failed.
type loadedScript struct {
	Path   string
	Module string
	Source []byte
	Script *parser.Script
	Err    error
}

// loadBatch reads and parses every path concurrently. Results keep input
// order. Read failures abort the batch; parse failures are kept per script.
func (s *Service) loadBatch(ctx context.Context, paths []string) ([]loadedScript, error) {
	results := make([]loadedScript, len(paths))
	if len(paths) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.GOMAXPROCS(0), len(paths)))

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				code := errors.CodeInternal
				if os.IsNotExist(err) {
					code = errors.CodeNotFound
				}
				return errors.AddContext(errors.Wrap(err, code, "read script"), errors.CtxPath, path)
			}
			loaded := loadedScript{Path: path, Module: parser.ModuleName(path), Source: content}
			loaded.Script, loaded.Err = s.parser.ParseScript(path, content)
			results[i] = loaded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// normalizeBatch makes paths absolute, drops duplicates and excluded scripts,
// and rejects non-Python inputs.
func normalizeBatch(paths []string, exclude *util.PathMatcher) (kept, excluded []string, err error) {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "resolve script path"), errors.CtxPath, p)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		if !parser.IsSupportedPath(abs) {
			return nil, nil, errors.AddContext(
				errors.New(errors.CodeNotSupported, fmt.Sprintf("%s is not a Python script", p)),
				errors.CtxPath, p)
		}
		if exclude.Match(abs) {
			excluded = append(excluded, abs)
			continue
		}
		kept = append(kept, abs)
	}
	return kept, excluded, nil
}

// checkModuleNames fails on two inputs that map to one module name. It runs
// over every input, parsed or not, so a broken script still claims its name.
func checkModuleNames(loaded []loadedScript) error {
	owner := make(map[string]string, len(loaded))
	for _, l := range loaded {
		if first, ok := owner[l.Module]; ok {
			return errors.AmbiguousModule(l.Module, first, l.Path)
		}
		owner[l.Module] = l.Path
	}
	return nil
}

func recordOutcome(outcome string) {
	observability.ScriptsTotal.WithLabelValues(outcome).Inc()
}
