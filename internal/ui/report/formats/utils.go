package formats

import (
	"devcrawl/internal/engine/trace"
	"fmt"
	"strings"
	"unicode"
)

const defaultIndent = 4

// flowLine is one call node in render order.
type flowLine struct {
	Depth int
	Node  *trace.CallNode
}

// flatten lists a run's call nodes depth-first, the order both the text and
// markdown views print them in.
func flatten(run *trace.Run) [][]flowLine {
	groups := make([][]flowLine, 0, len(run.Roots))
	for _, root := range run.Roots {
		var group []flowLine
		var walk func(node *trace.CallNode, depth int)
		walk = func(node *trace.CallNode, depth int) {
			group = append(group, flowLine{Depth: depth, Node: node})
			for _, child := range node.Children {
				walk(child, depth+1)
			}
		}
		walk(root, 0)
		groups = append(groups, group)
	}
	return groups
}

func runTitle(i int, run *trace.Run) string {
	title := fmt.Sprintf("Run %d", i+1)
	var meta []string
	if run.ID != "" {
		meta = append(meta, "run="+run.ID)
	}
	if run.PID != 0 {
		meta = append(meta, fmt.Sprintf("pid=%d", run.PID))
	}
	if len(meta) > 0 {
		title += " (" + strings.Join(meta, ", ") + ")"
	}
	return title
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func indentOf(width int) string {
	if width <= 0 {
		width = defaultIndent
	}
	return strings.Repeat(" ", width)
}

func sanitizeID(name string) string {
	if name == "" {
		return "n"
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if unicode.IsDigit(rune(out[0])) {
		return "n_" + out
	}
	return out
}

func makeIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		base := sanitizeID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

var labelEscaper = strings.NewReplacer(`"`, "'", "&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeLabel keeps a value inside a quoted mermaid label, where markup is
// rendered as HTML.
func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}

// escapeCell keeps a value inside one markdown table cell.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
