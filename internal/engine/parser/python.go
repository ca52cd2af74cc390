// # internal/engine/parser/python.go
package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type PythonExtractor struct {
	engine *ExtractorEngine
}

func NewPythonExtractor() *PythonExtractor {
	e := &PythonExtractor{}
	e.engine = NewExtractorEngine(map[string]NodeHandler{
		"import_statement":        e.extractImport,
		"import_from_statement":   e.extractFromImport,
		"future_import_statement": func(*ExtractionContext, *sitter.Node) bool { return true },
		"function_definition":     e.extractFunction,
		"class_definition":        e.extractClass,
	})
	return e
}

func (e *PythonExtractor) Extract(root *sitter.Node, script *Script) {
	ctx := &ExtractionContext{Source: script.Source, Script: script}
	script.PreludeOffset = preludeOffset(ctx, root)
	e.engine.Walk(ctx, root)
}

func (e *PythonExtractor) extractImport(ctx *ExtractionContext, node *sitter.Node) bool {
	stmt := ImportStatement{
		Kind:     ImportPlain,
		Start:    Offset(node.StartByte()),
		End:      Offset(node.EndByte()),
		Location: ctx.Location(node),
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if target, ok := importTarget(ctx, node.Child(i)); ok {
			stmt.Targets = append(stmt.Targets, target)
		}
	}
	ctx.Script.Imports = append(ctx.Script.Imports, stmt)
	return true
}

func (e *PythonExtractor) extractFromImport(ctx *ExtractionContext, node *sitter.Node) bool {
	stmt := ImportStatement{
		Kind:     ImportFrom,
		Start:    Offset(node.StartByte()),
		End:      Offset(node.EndByte()),
		Location: ctx.Location(node),
	}

	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch {
		case child.Kind() == "import":
			afterImport = true
		case !afterImport && child.Kind() == "relative_import":
			for j := uint(0); j < child.ChildCount(); j++ {
				sub := child.Child(j)
				switch sub.Kind() {
				case "import_prefix":
					stmt.Dots = strings.Count(ctx.Text(sub), ".")
				case "dotted_name":
					span := ctx.Span(sub)
					stmt.Module = &span
				}
			}
		case !afterImport && child.Kind() == "dotted_name":
			span := ctx.Span(child)
			stmt.Module = &span
		case afterImport:
			if target, ok := importTarget(ctx, child); ok {
				stmt.Targets = append(stmt.Targets, target)
			}
		}
	}

	ctx.Script.Imports = append(ctx.Script.Imports, stmt)
	return true
}

func importTarget(ctx *ExtractionContext, node *sitter.Node) (ImportTarget, bool) {
	switch node.Kind() {
	case "dotted_name":
		span := ctx.Span(node)
		return ImportTarget{Name: span, End: span.End}, true
	case "aliased_import":
		name := node.ChildByFieldName("name")
		alias := node.ChildByFieldName("alias")
		if name == nil {
			return ImportTarget{}, false
		}
		target := ImportTarget{Name: ctx.Span(name), End: Offset(node.EndByte())}
		if alias != nil {
			span := ctx.Span(alias)
			target.Alias = &span
		}
		return target, true
	}
	return ImportTarget{}, false
}

func (e *PythonExtractor) extractFunction(ctx *ExtractionContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	name := ctx.Text(nameNode)

	start := Offset(node.StartByte())
	lineStart := LineStart(ctx.Source, start)
	ctx.Script.Functions = append(ctx.Script.Functions, FunctionSite{
		Name:      name,
		QualName:  ctx.qualify(name),
		Depth:     len(ctx.scopes),
		Async:     node.ChildCount() > 0 && node.Child(0).Kind() == "async",
		LineStart: lineStart,
		Indent:    string(ctx.Source[lineStart:start]),
		Location:  ctx.Location(node),
	})

	ctx.scopes = append(ctx.scopes, scope{name: name, isFunction: true})
	e.engine.Walk(ctx, node.ChildByFieldName("body"))
	ctx.scopes = ctx.scopes[:len(ctx.scopes)-1]
	return true
}

func (e *PythonExtractor) extractClass(ctx *ExtractionContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}

	ctx.scopes = append(ctx.scopes, scope{name: ctx.Text(nameNode)})
	e.engine.Walk(ctx, node.ChildByFieldName("body"))
	ctx.scopes = ctx.scopes[:len(ctx.scopes)-1]
	return true
}

func (c *ExtractionContext) qualify(name string) string {
	if len(c.scopes) == 0 {
		return name
	}
	parts := make([]string, 0, len(c.scopes)*2+1)
	for _, s := range c.scopes {
		parts = append(parts, s.name)
		if s.isFunction {
			parts = append(parts, "<locals>")
		}
	}
	return strings.Join(append(parts, name), ".")
}

// preludeOffset skips the module docstring, comments and __future__ imports,
// which must stay ahead of any injected statement.
func preludeOffset(ctx *ExtractionContext, root *sitter.Node) int {
	offset := 0
	docstringAllowed := true
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		switch {
		case child.Kind() == "comment":
			continue
		case child.Kind() == "future_import_statement":
			docstringAllowed = false
		case docstringAllowed && isDocstring(child):
			docstringAllowed = false
		default:
			if offset == 0 {
				return LineStart(ctx.Source, Offset(child.StartByte()))
			}
			return offset
		}
		offset = NextLineStart(ctx.Source, Offset(child.EndByte()))
	}
	if offset == 0 {
		return len(ctx.Source)
	}
	return offset
}

func isDocstring(node *sitter.Node) bool {
	return node.Kind() == "expression_statement" &&
		node.NamedChildCount() == 1 &&
		node.NamedChild(0).Kind() == "string"
}
