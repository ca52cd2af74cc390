// # internal/engine/graph/detect.go
package graph

import (
	"devcrawl/internal/core/errors"
	"devcrawl/internal/engine/parser"
)

// DetectCycles returns every import cycle among batch members. A script
// importing itself is reported as a cycle of length one.
func (g *BatchGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	for _, modName := range g.names {
		if !visited[modName] {
			g.findCycles(modName, visited, onStack, []string{}, &cycles)
		}
	}

	return cycles
}

func (g *BatchGraph) findCycles(curr string, visited, onStack map[string]bool, path []string, cycles *[][]string) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	for _, next := range g.Dependencies(curr) {
		if onStack[next] {
			cycleStart := -1
			for i, mod := range path {
				if mod == next {
					cycleStart = i
					break
				}
			}
			if cycleStart != -1 {
				cycle := make([]string, len(path)-cycleStart)
				copy(cycle, path[cycleStart:])
				*cycles = append(*cycles, cycle)
			}
		} else if !visited[next] {
			g.findCycles(next, visited, onStack, path, cycles)
		}
	}

	onStack[curr] = false
}

// Order returns the scripts so that every script comes after all batch
// members it imports. Ties keep the input order.
func (g *BatchGraph) Order() ([]*parser.Script, error) {
	pending := make(map[string]int, len(g.names))
	for _, name := range g.names {
		pending[name] = len(g.imports[name])
	}

	done := make(map[string]bool, len(g.names))
	ordered := make([]*parser.Script, 0, len(g.names))
	for len(ordered) < len(g.names) {
		next := ""
		for _, name := range g.names {
			if !done[name] && pending[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			return nil, errors.DependencyCycle(g.DetectCycles())
		}

		done[next] = true
		ordered = append(ordered, g.scripts[next])
		for importer := range g.importedBy[next] {
			pending[importer]--
		}
	}

	return ordered, nil
}
