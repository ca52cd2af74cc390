package instrument

import (
	_ "embed"
	"strings"
)

//go:embed runtime.py
var runtimeSource string

const runtimeModule = "_devcrawl_runtime"

// Prelude renders the block injected once per script. It installs a single
// runtime module per interpreter, so every instrumented script of a process
// shares one call stack and one set of call counters. importNotes are
// carried verbatim right after the opening marker.
func Prelude(sink, eol string, importNotes ...string) string {
	lines := []string{MarkerBegin}
	lines = append(lines, importNotes...)
	lines = append(lines,
		"import sys as _devcrawl_sys",
		"if " + pyQuote(runtimeModule) + " not in _devcrawl_sys.modules:",
		"    _devcrawl_sys.modules[" + pyQuote(runtimeModule) + "] = type(_devcrawl_sys)(" + pyQuote(runtimeModule) + ")",
		"    exec(compile(" + pyQuote(runtimeSource) + ", \"<devcrawl-runtime>\", \"exec\"), _devcrawl_sys.modules[" + pyQuote(runtimeModule) + "].__dict__)",
		TraceHandle + " = _devcrawl_sys.modules[" + pyQuote(runtimeModule) + "].tracer(" + pyQuote(sink) + ")",
		"del _devcrawl_sys",
		MarkerEnd,
	)
	return strings.Join(lines, eol) + eol
}

// decoratorLine renders the trace hook placed directly above a def.
func decoratorLine(indent, module, qualName, eol string) string {
	return indent + "@" + TraceHandle + ".traced(" + pyQuote(module) + ", " + pyQuote(qualName) + ")" +
		markerSeparator + MarkerInjected + eol
}
