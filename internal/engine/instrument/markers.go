package instrument

import (
	"bytes"
	"devcrawl/internal/core/errors"
	"devcrawl/internal/engine/parser"
	"strconv"
	"strings"
)

const (
	DefaultSuffix = "_debug"

	MarkerBegin    = "# --- devcrawl:begin ---"
	MarkerEnd      = "# --- devcrawl:end ---"
	MarkerInjected = "# devcrawl:injected"
	MarkerImport   = "# devcrawl:import"
	// MarkerImportAt lines live inside the prelude and name an import by
	// its ordinal when no trailing marker could be placed on it.
	MarkerImportAt = "# devcrawl:import-at"

	// TraceHandle is the module-level name the prelude binds the runtime
	// tracer to; every injected decorator refers to it.
	TraceHandle = "_devcrawl_trace"

	markerSeparator = "  "
	aliasToken      = "+as"
)

// CheckReentrant refuses scripts that are already instrumented output,
// either by name or by carrying injected markers.
func CheckReentrant(path string, source []byte, suffix string) error {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if strings.HasSuffix(parser.ModuleName(path), suffix) {
		return errors.Reentrant(path, "file name carries the instrumented suffix "+strconv.Quote(suffix))
	}
	for _, marker := range []string{MarkerBegin, MarkerInjected, MarkerImport} {
		if bytes.Contains(source, []byte(marker)) {
			return errors.Reentrant(path, "source already contains devcrawl instrumentation")
		}
	}
	return nil
}

// pyQuote renders s as a Python string literal. Go's escape sequences for
// quoted strings are a subset of Python's.
func pyQuote(s string) string {
	return strconv.Quote(s)
}

func lineEnding(source []byte) string {
	if bytes.Contains(source, []byte("\r\n")) {
		return "\r\n"
	}
	return "\n"
}

// lineContentEnd returns the offset of the newline terminating the line that
// contains off, before any carriage return, or len(src) on the last line.
func lineContentEnd(src []byte, off int) int {
	end := parser.NextLineStart(src, off)
	if end > 0 && end <= len(src) && src[end-1] == '\n' {
		end--
		if end > 0 && src[end-1] == '\r' {
			end--
		}
	}
	return end
}
