package formats

import (
	"devcrawl/internal/engine/trace"
	"fmt"
	"strings"
)

type MarkdownReportOptions struct {
	// Indent is the number of spaces per list nesting level.
	Indent         int
	IncludeMermaid bool
	// MermaidDiagram is rendered under "Call Graph" when IncludeMermaid is set.
	MermaidDiagram string
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (m *MarkdownGenerator) Generate(rc *trace.Reconstruction, opts MarkdownReportOptions) (string, error) {
	indent := indentOf(opts.Indent)

	var b strings.Builder
	b.WriteString("# Debug Log <small>-> generated using devcrawl</small>\n\n")
	b.WriteString("<details><summary>Click to expand the brief summary</summary>\n\n")
	b.WriteString(fmt.Sprintf("- Total function calls: %d\n", rc.TotalCalls()))
	b.WriteString(fmt.Sprintf("- Unique functions entered: %d\n", len(rc.Totals)))
	b.WriteString(fmt.Sprintf("- Runs: %d\n", len(rc.Runs)))
	b.WriteString("</details>\n\n")

	b.WriteString("## Execution Flow\n\n")
	b.WriteString("<details>\n")
	b.WriteString("<summary>Click to expand the execution flow details</summary>\n\n")
	for i, run := range rc.Runs {
		b.WriteString("### " + runTitle(i, run) + "\n\n")
		for g, group := range flatten(run) {
			if g > 0 {
				b.WriteString("\n---\n\n")
			}
			for _, line := range group {
				b.WriteString(strings.Repeat(indent, line.Depth))
				b.WriteString("- " + markdownNode(line.Node) + "\n")
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("## Script Execution Completed\n\n</details>\n\n")

	m.writeSummary(&b, rc.Totals)
	m.writeDiagnostics(&b, rc)

	if opts.IncludeMermaid && strings.TrimSpace(opts.MermaidDiagram) != "" {
		b.WriteString("## Call Graph\n\n")
		b.WriteString("```mermaid\n")
		b.WriteString(strings.TrimSpace(opts.MermaidDiagram))
		b.WriteString("\n```\n")
	}
	return b.String(), nil
}

func markdownNode(node *trace.CallNode) string {
	s := fmt.Sprintf("**%s** in `%s` (call %d)", node.Func, node.Script, node.Call)
	if node.Incomplete {
		s += " _incomplete_"
	}
	return s
}

func (m *MarkdownGenerator) writeSummary(b *strings.Builder, totals []trace.FunctionTotal) {
	b.WriteString("## Function Call Summary<small> -> most called first</small>\n\n")
	if len(totals) == 0 {
		b.WriteString("No function calls recorded.\n\n")
		return
	}
	b.WriteString("| No. | Script | Function | Calls |\n")
	b.WriteString("| --- | ------ | -------- | ----- |\n")
	for i, total := range totals {
		b.WriteString(fmt.Sprintf("| %d | `%s` | `%s` | %d |\n", i+1, escapeCell(total.Script), escapeCell(total.Func), total.Calls))
	}
	b.WriteString("\n")
}

func (m *MarkdownGenerator) writeDiagnostics(b *strings.Builder, rc *trace.Reconstruction) {
	if rc.Incomplete == 0 && rc.Corrupt == 0 && len(rc.Mismatches) == 0 {
		return
	}
	b.WriteString("## Diagnostics\n\n")
	b.WriteString("| Kind | Count |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString(fmt.Sprintf("| Incomplete calls | %d |\n", rc.Incomplete))
	b.WriteString(fmt.Sprintf("| Corrupt records | %d |\n", rc.Corrupt))
	b.WriteString(fmt.Sprintf("| Exit mismatches | %d |\n\n", len(rc.Mismatches)))

	if len(rc.Problems) == 0 && len(rc.Mismatches) == 0 {
		return
	}
	b.WriteString("<details><summary>Details</summary>\n\n")
	for _, err := range rc.Problems {
		b.WriteString("- " + err.Error() + "\n")
	}
	for _, mm := range rc.Mismatches {
		b.WriteString("- " + mm.String() + "\n")
	}
	b.WriteString("\n</details>\n\n")
}
