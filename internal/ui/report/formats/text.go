package formats

import (
	"devcrawl/internal/engine/trace"
	"fmt"
	"strings"
)

type TextReportOptions struct {
	// Indent is the number of spaces per nesting level.
	Indent int
}

type TextGenerator struct{}

func NewTextGenerator() *TextGenerator {
	return &TextGenerator{}
}

// Generate renders the call tree one line per call, each root call framed
// as a group, followed by the function call summary.
func (g *TextGenerator) Generate(rc *trace.Reconstruction, opts TextReportOptions) (string, error) {
	indent := indentOf(opts.Indent)

	var b strings.Builder
	for i, run := range rc.Runs {
		b.WriteString(fmt.Sprintf(">>> %s\n", runTitle(i, run)))
		for _, group := range flatten(run) {
			b.WriteString("\n>>> Starting group:\n")
			for _, line := range group {
				b.WriteString(strings.Repeat(indent, line.Depth))
				b.WriteString(textNode(line.Node))
				b.WriteString("\n")
			}
			b.WriteString("<<< Ending group:\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(">>> Script execution completed <<<\n")

	b.WriteString("\n>>> Function Call Summary <<<\n")
	b.WriteString("------ Legend ------\n")
	b.WriteString("'Script Name | Function Name: Called X times' indicates how many times a function was called.\n")
	b.WriteString("The summary is listed by call count; equal counts keep the order functions were first called.\n")
	b.WriteString("---------------------\n\n")
	for _, total := range rc.Totals {
		b.WriteString(fmt.Sprintf("%s: Called %d times\n", total.FunctionKey, total.Calls))
	}
	b.WriteString(fmt.Sprintf("\nTotal function calls: %d\n", rc.TotalCalls()))
	b.WriteString(fmt.Sprintf("Unique functions entered: %d\n", len(rc.Totals)))

	writeTextDiagnostics(&b, rc)
	return b.String(), nil
}

func textNode(node *trace.CallNode) string {
	s := fmt.Sprintf("%s [call %d]", node.Key(), node.Call)
	if node.Incomplete {
		s += " [incomplete]"
	}
	return s
}

func writeTextDiagnostics(b *strings.Builder, rc *trace.Reconstruction) {
	if rc.Incomplete == 0 && rc.Corrupt == 0 && len(rc.Mismatches) == 0 {
		return
	}
	b.WriteString("\n>>> Diagnostics <<<\n")
	if rc.Incomplete > 0 {
		b.WriteString(fmt.Sprintf("Incomplete calls (never exited): %d\n", rc.Incomplete))
	}
	if rc.Corrupt > 0 {
		b.WriteString(fmt.Sprintf("Corrupt records skipped: %d\n", rc.Corrupt))
		for _, err := range rc.Problems {
			b.WriteString("    " + err.Error() + "\n")
		}
	}
	if len(rc.Mismatches) > 0 {
		b.WriteString(fmt.Sprintf("Exit mismatches: %d\n", len(rc.Mismatches)))
		for _, m := range rc.Mismatches {
			b.WriteString("    " + m.String() + "\n")
		}
	}
}
