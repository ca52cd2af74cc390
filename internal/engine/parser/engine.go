package parser

import (
	"fortio.org/safecast"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node for the extractor.
// Returns true if the handler has processed children and the walker should stop.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries shared state/helpers used while walking a script.
type ExtractionContext struct {
	Source []byte
	Script *Script
	// scopes holds the enclosing definition names, outermost first.
	scopes []scope
}

type scope struct {
	name       string
	isFunction bool
}

// ExtractorEngine walks the syntax tree and dispatches node handlers by kind.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}

	stop := false
	if handler, ok := e.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}

	if !stop {
		e.WalkChildren(ctx, node)
	}
}

func (e *ExtractorEngine) WalkChildren(ctx *ExtractionContext, node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		e.Walk(ctx, node.Child(i))
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[Offset(node.StartByte()):Offset(node.EndByte())])
}

func (c *ExtractionContext) Span(node *sitter.Node) Span {
	return Span{
		Start: Offset(node.StartByte()),
		End:   Offset(node.EndByte()),
		Text:  c.Text(node),
	}
}

func (c *ExtractionContext) Location(node *sitter.Node) Location {
	return Location{
		File:   c.Script.Path,
		Line:   Offset(node.StartPosition().Row) + 1,
		Column: Offset(node.StartPosition().Column) + 1,
	}
}

func (c *ExtractionContext) ChildText(node *sitter.Node, kind string) string {
	if node == nil {
		return ""
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return c.Text(child)
		}
	}
	return ""
}

// Offset converts a tree-sitter position component to int. Values that do
// not fit clamp to zero, which only happens for corrupted trees.
func Offset(v uint) int {
	n, err := safecast.Conv[int](v)
	if err != nil {
		return 0
	}
	return n
}

// LineStart returns the offset of the first byte of the line containing off.
func LineStart(src []byte, off int) int {
	for off > 0 && src[off-1] != '\n' {
		off--
	}
	return off
}

// NextLineStart returns the offset just past the newline ending the line
// containing off, or len(src) when that line is the last one.
func NextLineStart(src []byte, off int) int {
	for off < len(src) {
		if src[off] == '\n' {
			return off + 1
		}
		off++
	}
	return len(src)
}
