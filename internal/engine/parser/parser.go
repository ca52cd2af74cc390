// # internal/engine/parser/parser.go
package parser

import (
	"devcrawl/internal/core/errors"
	"devcrawl/internal/shared/observability"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type Parser struct {
	pool      *parserPool
	extractor *PythonExtractor
}

func NewParser() *Parser {
	return &Parser{
		pool:      newParserPool(PythonLanguage()),
		extractor: NewPythonExtractor(),
	}
}

// ParseScript parses Python source and extracts imports and function sites.
// A tree containing syntax errors yields a SOURCE_PARSE error pointing at the
// first offending node.
func (p *Parser) ParseScript(path string, content []byte) (*Script, error) {
	started := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues("python").Observe(time.Since(started).Seconds())
	}()

	tree, err := p.parse(path, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	script := &Script{
		Path:     path,
		Module:   ModuleName(path),
		Source:   content,
		ParsedAt: time.Now(),
	}
	p.extractor.Extract(tree.RootNode(), script)
	return script, nil
}

// Validate reports whether content parses cleanly.
func (p *Parser) Validate(path string, content []byte) error {
	tree, err := p.parse(path, content)
	if err != nil {
		return err
	}
	tree.Close()
	return nil
}

func (p *Parser) parse(path string, content []byte) (*sitter.Tree, error) {
	sp := p.pool.Get()
	defer p.pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeInternal, "parse failed"), errors.CtxPath, path)
	}

	root := tree.RootNode()
	if !root.HasError() {
		return tree, nil
	}
	defer tree.Close()

	bad := firstErrorNode(root)
	if bad == nil {
		bad = root
	}
	msg := "syntax error"
	if bad.IsMissing() {
		msg = "missing " + bad.Kind()
	}
	return nil, errors.SourceParse(path,
		Offset(bad.StartPosition().Row)+1,
		Offset(bad.StartPosition().Column)+1,
		msg)
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
