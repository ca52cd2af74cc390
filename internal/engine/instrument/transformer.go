// # internal/engine/instrument/transformer.go
package instrument

import (
	"devcrawl/internal/engine/parser"
	"devcrawl/internal/shared/observability"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

type Options struct {
	// Suffix is appended to module and file names of instrumented output.
	Suffix string
	// Sink is the trace destination baked into the prelude: an absolute log
	// path, or "" for the terminal.
	Sink string
	// SkipFunctions are glob patterns matched against qualified names.
	SkipFunctions []string
}

// Transformer turns a parsed script into the edit list of its instrumented
// form. The script's source is never modified.
type Transformer struct {
	rewriter *ImportRewriter
	opts     Options
	skip     []glob.Glob
}

// Result is the transformer's output for one script, owned by the caller
// until it is handed to the Emitter.
type Result struct {
	Script       *parser.Script
	Edits        []Edit
	Instrumented []parser.FunctionSite
	Skipped      []parser.FunctionSite
	Rewrites     []Rewrite
}

func NewTransformer(registry Registry, opts Options) (*Transformer, error) {
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	compiled := make([]glob.Glob, 0, len(opts.SkipFunctions))
	for _, pattern := range opts.SkipFunctions {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid skip_functions pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, g)
	}
	return &Transformer{
		rewriter: NewImportRewriter(registry, opts.Suffix),
		opts:     opts,
		skip:     compiled,
	}, nil
}

func (t *Transformer) Transform(script *parser.Script) (*Result, error) {
	if err := CheckReentrant(script.Path, script.Source, t.opts.Suffix); err != nil {
		return nil, err
	}

	eol := lineEnding(script.Source)
	res := &Result{Script: script}

	importEdits, rewrites, notes := t.rewriter.Rewrite(script)
	res.Rewrites = rewrites

	prelude := Prelude(t.opts.Sink, eol, notes...)
	if n := len(script.Source); script.PreludeOffset == n && n > 0 && script.Source[n-1] != '\n' {
		// The prelude starts on a fresh line when the file lacks a final newline.
		prelude = eol + strings.TrimSuffix(prelude, eol)
	}
	res.Edits = append(res.Edits, Edit{Start: script.PreludeOffset, End: script.PreludeOffset, Text: prelude})

	for _, fn := range script.Functions {
		if t.skipped(fn) {
			res.Skipped = append(res.Skipped, fn)
			continue
		}
		res.Edits = append(res.Edits, Edit{
			Start: fn.LineStart,
			End:   fn.LineStart,
			Text:  decoratorLine(fn.Indent, script.Module, fn.QualName, eol),
		})
		res.Instrumented = append(res.Instrumented, fn)
	}

	res.Edits = append(res.Edits, importEdits...)

	observability.FunctionsInstrumentedTotal.Add(float64(len(res.Instrumented)))
	observability.ImportsRewrittenTotal.Add(float64(len(res.Rewrites)))
	return res, nil
}

// Render applies the result's edits to the script source.
func (r *Result) Render() ([]byte, error) {
	return Apply(r.Script.Source, r.Edits)
}

func (t *Transformer) skipped(fn parser.FunctionSite) bool {
	if strings.TrimLeft(fn.Indent, " \t") != "" {
		// Only defs that start their own line can take a decorator.
		return true
	}
	for _, g := range t.skip {
		if g.Match(fn.QualName) || g.Match(fn.Name) {
			return true
		}
	}
	return false
}
