package report

import (
	"devcrawl/internal/engine/trace"
	"devcrawl/internal/ui/report/formats"
)

type TextGenerator = formats.TextGenerator
type MarkdownGenerator = formats.MarkdownGenerator
type MermaidGenerator = formats.MermaidGenerator

type TextReportOptions = formats.TextReportOptions
type MarkdownReportOptions = formats.MarkdownReportOptions

func NewTextGenerator() *TextGenerator {
	return formats.NewTextGenerator()
}

func NewMarkdownGenerator() *MarkdownGenerator {
	return formats.NewMarkdownGenerator()
}

func NewMermaidGenerator(rc *trace.Reconstruction) *MermaidGenerator {
	return formats.NewMermaidGenerator(rc)
}
