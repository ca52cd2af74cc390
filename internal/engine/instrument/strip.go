// # internal/engine/instrument/strip.go
package instrument

import (
	"devcrawl/internal/core/errors"
	"devcrawl/internal/engine/parser"
	"strconv"
	"strings"
)

type importToken struct {
	module string
	alias  bool
}

// Strip reverses instrumentation: it drops the prelude and injected
// decorators and restores every marked import, reproducing the original
// source byte for byte.
func Strip(p *parser.Parser, path string, src []byte, suffix string) ([]byte, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	script, err := p.ParseScript(path, src)
	if err != nil {
		return nil, err
	}

	var edits []Edit
	tokens := make(map[int][]importToken) // line content end -> pending tokens
	notes := make(map[int][]importToken)  // import ordinal -> pending tokens

	preludeStart := -1
	preludeFrom, preludeTo := -1, -1
	for start := 0; start < len(src); {
		next := parser.NextLineStart(src, start)
		end := lineContentEnd(src, start)
		line := string(src[start:end])
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == MarkerBegin && preludeStart < 0:
			preludeStart = start
		case trimmed == MarkerEnd && preludeStart >= 0:
			from := preludeStart
			if next == end {
				// Injected at EOF behind a newline that was not there before.
				from = trimLineBreakBefore(src, from)
			}
			edits = append(edits, Edit{Start: from, End: next})
			preludeFrom, preludeTo = preludeStart, next
			preludeStart = -2
		case preludeStart >= 0:
			if rest, ok := strings.CutPrefix(trimmed, MarkerImportAt+" "); ok {
				ordinal, toks, err := parseImportNote(rest)
				if err != nil {
					return nil, errors.AddContext(err, errors.CtxPath, path)
				}
				notes[ordinal] = toks
			}
		case strings.HasPrefix(trimmed, "@"+TraceHandle+".traced(") && strings.HasSuffix(trimmed, MarkerInjected):
			edits = append(edits, Edit{Start: start, End: next})
		default:
			if idx := strings.LastIndex(line, markerSeparator+MarkerImport+" "); idx >= 0 {
				edits = append(edits, Edit{Start: start + idx, End: end})
				tokens[end] = parseImportTokens(line[idx+len(markerSeparator+MarkerImport):])
			}
		}
		start = next
	}
	if preludeStart >= 0 {
		return nil, errors.AddContext(errors.New(errors.CodeValidationError, "unterminated devcrawl prelude"), errors.CtxPath, path)
	}

	ordinal := 0
	for _, stmt := range script.Imports {
		if stmt.Start >= preludeFrom && stmt.Start < preludeTo {
			continue
		}
		if pending := notes[ordinal]; len(pending) > 0 {
			var stmtEdits []Edit
			stmtEdits, notes[ordinal] = restoreStatement(stmt, pending, suffix)
			edits = append(edits, stmtEdits...)
		}
		ordinal++

		end := lineContentEnd(src, stmt.End)
		pending, ok := tokens[end]
		if !ok || len(pending) == 0 {
			continue
		}
		var stmtEdits []Edit
		stmtEdits, tokens[end] = restoreStatement(stmt, pending, suffix)
		edits = append(edits, stmtEdits...)
	}
	for _, pending := range []map[int][]importToken{tokens, notes} {
		for _, left := range pending {
			if len(left) > 0 {
				return nil, errors.AddContext(errors.New(errors.CodeValidationError, "import marker does not match its statement"), errors.CtxPath, path)
			}
		}
	}

	return Apply(src, edits)
}

func restoreStatement(stmt parser.ImportStatement, pending []importToken, suffix string) ([]Edit, []importToken) {
	var edits []Edit
	if stmt.Kind == parser.ImportFrom && stmt.Module != nil {
		if stmt.Module.Text == pending[0].module+suffix {
			edits = append(edits, Edit{Start: stmt.Module.Start, End: stmt.Module.End, Text: pending[0].module})
			pending = pending[1:]
		}
		return edits, pending
	}

	for _, target := range stmt.Targets {
		if len(pending) == 0 {
			break
		}
		tok := pending[0]
		if target.Name.Text != tok.module+suffix {
			continue
		}
		end := target.Name.End
		if tok.alias {
			end = target.End
		}
		edits = append(edits, Edit{Start: target.Name.Start, End: end, Text: tok.module})
		pending = pending[1:]
	}
	return edits, pending
}

func parseImportTokens(s string) []importToken {
	fields := strings.Fields(s)
	out := make([]importToken, 0, len(fields))
	for _, f := range fields {
		module, alias := strings.CutSuffix(f, aliasToken)
		out = append(out, importToken{module: module, alias: alias})
	}
	return out
}

func parseImportNote(s string) (int, []importToken, error) {
	head, rest, _ := strings.Cut(s, " ")
	ordinal, err := strconv.Atoi(head)
	if err != nil || ordinal < 0 {
		return 0, nil, errors.New(errors.CodeValidationError, "malformed import note "+strconv.Quote(s))
	}
	return ordinal, parseImportTokens(rest), nil
}

func trimLineBreakBefore(src []byte, off int) int {
	if off > 0 && src[off-1] == '\n' {
		off--
		if off > 0 && src[off-1] == '\r' {
			off--
		}
	}
	return off
}
