package parser

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

const PythonExtension = ".py"

var (
	pythonOnce sync.Once
	pythonLang *sitter.Language
)

// PythonLanguage returns the shared tree-sitter Python grammar.
func PythonLanguage() *sitter.Language {
	pythonOnce.Do(func() {
		pythonLang = sitter.NewLanguage(tree_sitter_python.Language())
	})
	return pythonLang
}

// ModuleName derives the importable module name of a script path.
func ModuleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsSupportedPath reports whether the path looks like a Python script.
func IsSupportedPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), PythonExtension)
}
