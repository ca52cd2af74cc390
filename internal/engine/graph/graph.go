// # internal/engine/graph/graph.go
package graph

import (
	"devcrawl/internal/core/errors"
	"devcrawl/internal/engine/parser"
	"devcrawl/internal/shared/observability"
	"sort"
)

// BatchGraph is the module-name registry of one batch plus its in-batch
// import edges. It is built once, before any import is rewritten, and is
// read-only afterwards.
type BatchGraph struct {
	scripts map[string]*parser.Script // module name -> script
	index   map[string]int            // module name -> input position
	names   []string                  // input order

	imports    map[string]map[string]*ImportEdge // from -> to -> edge
	importedBy map[string]map[string]bool        // to -> from
}

type ImportEdge struct {
	From     string
	To       string
	Location parser.Location
}

// NewBatchGraph registers the scripts in input order and links every import
// whose target is another batch member. Two scripts producing the same
// module name make the batch ambiguous.
func NewBatchGraph(scripts []*parser.Script) (*BatchGraph, error) {
	g := &BatchGraph{
		scripts:    make(map[string]*parser.Script, len(scripts)),
		index:      make(map[string]int, len(scripts)),
		imports:    make(map[string]map[string]*ImportEdge),
		importedBy: make(map[string]map[string]bool),
	}

	for _, script := range scripts {
		if prev, ok := g.scripts[script.Module]; ok {
			return nil, errors.AmbiguousModule(script.Module, prev.Path, script.Path)
		}
		g.scripts[script.Module] = script
		g.index[script.Module] = len(g.names)
		g.names = append(g.names, script.Module)
	}

	for _, name := range g.names {
		script := g.scripts[name]
		for _, imp := range script.Imports {
			for _, target := range imp.Modules() {
				if _, ok := g.scripts[target]; ok {
					g.addEdge(name, target, imp.Location)
				}
			}
		}
	}

	observability.BatchGraphEdges.Set(float64(g.EdgeCount()))
	return g, nil
}

func (g *BatchGraph) addEdge(from, to string, loc parser.Location) {
	if g.imports[from] == nil {
		g.imports[from] = make(map[string]*ImportEdge)
	}
	if _, exists := g.imports[from][to]; exists {
		return
	}
	g.imports[from][to] = &ImportEdge{From: from, To: to, Location: loc}

	if g.importedBy[to] == nil {
		g.importedBy[to] = make(map[string]bool)
	}
	g.importedBy[to][from] = true
}

// Has reports whether module is a batch member.
func (g *BatchGraph) Has(module string) bool {
	_, ok := g.scripts[module]
	return ok
}

func (g *BatchGraph) Lookup(module string) (*parser.Script, bool) {
	s, ok := g.scripts[module]
	return s, ok
}

// Modules returns the module names in input order.
func (g *BatchGraph) Modules() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// Dependencies returns the batch members module imports, in input order.
func (g *BatchGraph) Dependencies(module string) []string {
	out := make([]string, 0, len(g.imports[module]))
	for to := range g.imports[module] {
		out = append(out, to)
	}
	g.sortByInput(out)
	return out
}

// Dependents returns the batch members importing module, in input order.
func (g *BatchGraph) Dependents(module string) []string {
	out := make([]string, 0, len(g.importedBy[module]))
	for from := range g.importedBy[module] {
		out = append(out, from)
	}
	g.sortByInput(out)
	return out
}

// Edges returns every in-batch import edge ordered by importer then target.
func (g *BatchGraph) Edges() []ImportEdge {
	var out []ImportEdge
	for _, from := range g.names {
		for _, to := range g.Dependencies(from) {
			out = append(out, *g.imports[from][to])
		}
	}
	return out
}

func (g *BatchGraph) EdgeCount() int {
	n := 0
	for _, targets := range g.imports {
		n += len(targets)
	}
	return n
}

func (g *BatchGraph) sortByInput(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return g.index[names[i]] < g.index[names[j]]
	})
}
