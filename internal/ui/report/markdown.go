package report

import (
	"devcrawl/internal/engine/trace"
	"fmt"
	"os"
	"path/filepath"
)

// RenderText renders the indented text view of rc.
func RenderText(rc *trace.Reconstruction, indent int) (string, error) {
	return NewTextGenerator().Generate(rc, TextReportOptions{Indent: indent})
}

// RenderMarkdown renders the markdown view of rc, with the call graph when
// includeMermaid is set.
func RenderMarkdown(rc *trace.Reconstruction, indent int, includeMermaid bool) (string, error) {
	opts := MarkdownReportOptions{Indent: indent, IncludeMermaid: includeMermaid}
	if includeMermaid {
		diagram, err := NewMermaidGenerator(rc).Generate()
		if err != nil {
			return "", fmt.Errorf("render call graph: %w", err)
		}
		opts.MermaidDiagram = diagram
	}
	return NewMarkdownGenerator().Generate(rc, opts)
}

// WriteFile replaces filePath with content through a temp file in the same
// directory, so readers never see a half-written report.
func WriteFile(filePath, content string) error {
	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, ".devcrawl-report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", filePath, err)
	}
	tmpName := tmp.Name()

	writeErr := error(nil)
	if _, err := tmp.WriteString(content); err != nil {
		writeErr = fmt.Errorf("write temp report file %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("close temp report file %q: %w", tmpName, err)
	}
	if writeErr == nil {
		if err := os.Chmod(tmpName, 0o644); err != nil {
			writeErr = fmt.Errorf("chmod temp report file %q: %w", tmpName, err)
		}
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return writeErr
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace report file %q: %w", filePath, err)
	}
	return nil
}
