package cli

import (
	"devcrawl/internal/core/ports"
	"devcrawl/internal/engine/trace"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// printBatchSummary lists every original script next to its instrumented
// copy, then whatever was skipped or failed.
func printBatchSummary(w io.Writer, report *ports.BatchReport) {
	var b strings.Builder

	if len(report.Instrumented) > 0 {
		b.WriteString("\n" + titleStyle.Render("Modified scripts:") + "\n")
		for _, s := range report.Instrumented {
			fmt.Fprintf(&b, "%s -> %s\n", s.Path, s.Destination)
		}
	}
	if len(report.Declined) > 0 {
		b.WriteString("\n" + warningStyle.Render("Kept existing output for:") + "\n")
		for _, p := range report.Declined {
			fmt.Fprintf(&b, "%s\n", p)
		}
	}
	if len(report.Excluded) > 0 {
		b.WriteString("\n" + statusStyle.Render("Excluded by config:") + "\n")
		for _, p := range report.Excluded {
			fmt.Fprintf(&b, "%s\n", p)
		}
	}
	if len(report.Failed) > 0 {
		b.WriteString("\n" + failureStyle.Render("Failed scripts:") + "\n")
		for _, f := range report.Failed {
			fmt.Fprintf(&b, "%s: %v\n", f.Path, f.Err)
		}
	}

	functions := 0
	for _, s := range report.Instrumented {
		functions += s.Functions
	}
	status := fmt.Sprintf("%d scripts instrumented, %d functions traced, %d failed in %s",
		len(report.Instrumented), functions, len(report.Failed), report.Duration.Round(time.Millisecond))
	if report.OK() {
		b.WriteString("\n" + successStyle.Render(status) + "\n")
	} else {
		b.WriteString("\n" + failureStyle.Render(status) + "\n")
	}

	fmt.Fprint(w, b.String())
}

// printReportNotice confirms a written report and flags a damaged log.
func printReportNotice(w io.Writer, message string, rc *trace.Reconstruction) {
	fmt.Fprintln(w, successStyle.Render(message))
	if rc == nil {
		return
	}
	var problems []string
	if rc.Incomplete > 0 {
		problems = append(problems, fmt.Sprintf("%d calls never returned", rc.Incomplete))
	}
	if len(rc.Mismatches) > 0 {
		problems = append(problems, fmt.Sprintf("%d unmatched exits", len(rc.Mismatches)))
	}
	if rc.Corrupt > 0 {
		problems = append(problems, fmt.Sprintf("%d undecodable records", rc.Corrupt))
	}
	if len(problems) > 0 {
		fmt.Fprintln(w, warningStyle.Render("Log is incomplete: "+strings.Join(problems, ", ")))
	}
}
