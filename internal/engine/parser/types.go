package parser

import (
	"time"
)

// Script is one parsed batch member. Offsets are byte offsets into Source.
type Script struct {
	Path      string
	Module    string // File stem, unique within a batch
	Source    []byte
	Imports   []ImportStatement
	Functions []FunctionSite
	// PreludeOffset is where the runtime prelude is inserted: after the module
	// docstring, leading comments and __future__ imports.
	PreludeOffset int
	ParsedAt      time.Time
}

// ImportTargets returns every module name the script imports, in source order.
func (s *Script) ImportTargets() []string {
	var out []string
	for _, imp := range s.Imports {
		out = append(out, imp.Modules()...)
	}
	return out
}

type ImportKind int

const (
	ImportPlain ImportKind = iota // import a, b as c
	ImportFrom                    // from a import b
)

type Span struct {
	Start int
	End   int
	Text  string
}

type ImportStatement struct {
	Kind  ImportKind
	Start int
	End   int
	// Module is the dotted module of a from-import without its leading dots.
	// Nil for `from . import x`.
	Module *Span
	Dots   int
	// Targets are the imported names: modules for a plain import, members
	// for a from-import.
	Targets  []ImportTarget
	Location Location
}

// Modules lists the module names this statement refers to.
func (s ImportStatement) Modules() []string {
	switch s.Kind {
	case ImportPlain:
		out := make([]string, 0, len(s.Targets))
		for _, t := range s.Targets {
			out = append(out, t.Name.Text)
		}
		return out
	case ImportFrom:
		if s.Module != nil {
			return []string{s.Module.Text}
		}
		// `from . import helper` names sibling modules directly.
		out := make([]string, 0, len(s.Targets))
		for _, t := range s.Targets {
			out = append(out, t.Name.Text)
		}
		return out
	}
	return nil
}

type ImportTarget struct {
	Name  Span
	Alias *Span
	// End is the end of the whole target including any alias.
	End int
}

type FunctionSite struct {
	Name     string
	QualName string // Python __qualname__ form: Outer.method, outer.<locals>.inner
	Depth    int    // Enclosing function and class definitions
	Async    bool
	// LineStart is the offset of the first byte of the line holding `def`.
	LineStart int
	Indent    string
	Location  Location
}

type Location struct {
	File   string
	Line   int
	Column int
}
