// # internal/ui/report/formats/mermaid.go
package formats

import (
	"devcrawl/internal/engine/trace"
	"fmt"
	"strings"
)

type MermaidGenerator struct {
	rc *trace.Reconstruction
}

func NewMermaidGenerator(rc *trace.Reconstruction) *MermaidGenerator {
	return &MermaidGenerator{rc: rc}
}

// Generate renders a flowchart with one node per traced function, labelled
// with its total calls, and one edge per caller/callee pair labelled with how
// often that call happened.
func (m *MermaidGenerator) Generate() (string, error) {
	var b strings.Builder
	b.WriteString("%%{init: {'theme': 'base', 'themeVariables': {'textColor': '#000000', 'lineColor': '#333333'}, 'flowchart': {'curve': 'basis'}}}%%\n")
	b.WriteString("flowchart LR\n")

	names := make([]string, 0, len(m.rc.Totals))
	for _, total := range m.rc.Totals {
		names = append(names, total.FunctionKey.String())
	}
	ids := makeIDs(names)

	scripts := make([]string, 0)
	byScript := make(map[string][]trace.FunctionTotal)
	for _, total := range m.rc.Totals {
		if _, ok := byScript[total.Script]; !ok {
			scripts = append(scripts, total.Script)
		}
		byScript[total.Script] = append(byScript[total.Script], total)
	}

	for _, script := range scripts {
		b.WriteString(fmt.Sprintf("  subgraph script_%s[\"%s\"]\n", sanitizeID(script), escapeLabel(script)))
		for _, total := range byScript[script] {
			b.WriteString(fmt.Sprintf("    %s[\"%s<br/>(%s)\"]\n",
				ids[total.FunctionKey.String()],
				escapeLabel(total.Func),
				plural(total.Calls, "call", "calls")))
		}
		b.WriteString("  end\n")
	}

	edges := m.rc.Edges()
	if len(edges) > 0 {
		b.WriteString("\n")
	}
	for _, edge := range edges {
		b.WriteString(fmt.Sprintf("  %s -->|%d| %s\n", ids[edge.Caller.String()], edge.Calls, ids[edge.Callee.String()]))
	}

	incomplete := make(map[string]bool)
	m.rc.Walk(func(_ *trace.Run, node, _ *trace.CallNode) {
		if node.Incomplete {
			incomplete[node.Key().String()] = true
		}
	})
	if len(incomplete) > 0 {
		open := make([]string, 0, len(incomplete))
		for _, name := range names {
			if incomplete[name] {
				open = append(open, ids[name])
			}
		}
		b.WriteString("\n  classDef incompleteNode fill:#fff1f0,stroke:#c0392b,stroke-width:2px,color:#000000;\n")
		b.WriteString("  class " + strings.Join(open, ",") + " incompleteNode;\n")
	}
	return b.String(), nil
}
