// # internal/engine/instrument/rewriter.go
package instrument

import (
	"devcrawl/internal/engine/parser"
	"sort"
	"strconv"
	"strings"
)

// Registry answers batch membership by exact module name.
type Registry interface {
	Has(module string) bool
}

// Rewrite records one import target redirected to an instrumented module.
type Rewrite struct {
	Module     string
	AddedAlias bool
	Location   parser.Location
}

func (r Rewrite) token() string {
	if r.AddedAlias {
		return r.Module + aliasToken
	}
	return r.Module
}

// ImportRewriter redirects imports of batch members to their instrumented
// siblings and leaves every other import byte-identical.
type ImportRewriter struct {
	registry Registry
	suffix   string
}

func NewImportRewriter(registry Registry, suffix string) *ImportRewriter {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return &ImportRewriter{registry: registry, suffix: suffix}
}

// Rewrite returns the edits for every import statement of the script. The
// tokens needed to reverse a rewrite go into a trailing marker comment on the
// statement's last line when nothing but a comment follows it there; otherwise
// they come back as notes for the prelude, keyed by the statement's ordinal.
func (r *ImportRewriter) Rewrite(script *parser.Script) ([]Edit, []Rewrite, []string) {
	var edits []Edit
	var rewrites []Rewrite
	type pending struct {
		ordinal int
		tokens  []string
		end     int
	}
	byLineEnd := make(map[int][]pending)

	for i, stmt := range script.Imports {
		stmtEdits, stmtRewrites := r.rewriteStatement(stmt)
		if len(stmtRewrites) == 0 {
			continue
		}
		edits = append(edits, stmtEdits...)
		rewrites = append(rewrites, stmtRewrites...)

		p := pending{ordinal: i, end: stmt.End}
		for _, rw := range stmtRewrites {
			p.tokens = append(p.tokens, rw.token())
		}
		lineEnd := lineContentEnd(script.Source, stmt.End)
		byLineEnd[lineEnd] = append(byLineEnd[lineEnd], p)
	}

	lineEnds := make([]int, 0, len(byLineEnd))
	for end := range byLineEnd {
		lineEnds = append(lineEnds, end)
	}
	sort.Ints(lineEnds)

	var notes []string
	for _, end := range lineEnds {
		group := byLineEnd[end]
		last := group[len(group)-1].end
		if markerSafe(script.Source[last:end]) {
			var tokens []string
			for _, p := range group {
				tokens = append(tokens, p.tokens...)
			}
			edits = append(edits, Edit{
				Start: end,
				End:   end,
				Text:  markerSeparator + MarkerImport + " " + strings.Join(tokens, " "),
			})
			continue
		}
		for _, p := range group {
			notes = append(notes, importNote(p.ordinal, p.tokens))
		}
	}

	return edits, rewrites, notes
}

// markerSafe reports whether a comment appended after rest still ends the
// line as a comment: rest may hold only blanks and an existing comment. Any
// other code could open a string literal that spans the line break.
func markerSafe(rest []byte) bool {
	trimmed := strings.TrimLeft(string(rest), " \t")
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

func importNote(ordinal int, tokens []string) string {
	return MarkerImportAt + " " + strconv.Itoa(ordinal) + " " + strings.Join(tokens, " ")
}

func (r *ImportRewriter) rewriteStatement(stmt parser.ImportStatement) ([]Edit, []Rewrite) {
	var edits []Edit
	var rewrites []Rewrite

	if stmt.Kind == parser.ImportFrom && stmt.Module != nil {
		if r.registry.Has(stmt.Module.Text) {
			edits = append(edits, Edit{
				Start: stmt.Module.Start,
				End:   stmt.Module.End,
				Text:  stmt.Module.Text + r.suffix,
			})
			rewrites = append(rewrites, Rewrite{Module: stmt.Module.Text, Location: stmt.Location})
		}
		return edits, rewrites
	}

	// Plain imports and `from . import name` bind module names directly; the
	// binding keeps its original name through an alias.
	for _, target := range stmt.Targets {
		name := target.Name.Text
		if !r.registry.Has(name) {
			continue
		}
		text := name + r.suffix
		added := target.Alias == nil
		if added {
			text += " as " + name
		}
		edits = append(edits, Edit{Start: target.Name.Start, End: target.Name.End, Text: text})
		rewrites = append(rewrites, Rewrite{Module: name, AddedAlias: added, Location: stmt.Location})
	}
	return edits, rewrites
}
