// # internal/core/config/config.go
package config

import (
	"time"
)

// DefaultFile is looked up in the working directory when --config is not given.
const DefaultFile = "devcrawl.toml"

type Config struct {
	Version       int           `toml:"version"`
	Output        Output        `toml:"output"`
	Instrument    Instrument    `toml:"instrument"`
	Report        Report        `toml:"report"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Output struct {
	// Sink is "terminal" or "file".
	Sink    string `toml:"sink"`
	LogPath string `toml:"log_path"`
	Suffix  string `toml:"suffix"`
	// Force overwrites existing instrumented files without asking.
	Force bool `toml:"force"`
}

type Instrument struct {
	// SkipFunctions are glob patterns over qualified function names.
	SkipFunctions []string `toml:"skip_functions"`
	// ExcludeScripts are glob patterns over script paths dropped from a batch.
	ExcludeScripts []string `toml:"exclude_scripts"`
}

type Report struct {
	Indent         int    `toml:"indent"`
	MarkdownPath   string `toml:"markdown_path"`
	TextSuffix     string `toml:"text_suffix"`
	IncludeMermaid *bool  `toml:"include_mermaid"`
}

type Watch struct {
	Debounce             time.Duration `toml:"debounce"`
	MaxRebuildsPerSecond float64       `toml:"max_rebuilds_per_second"`
}

type Observability struct {
	EnableTracing bool   `toml:"enable_tracing"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	Insecure      bool   `toml:"insecure"`
	MetricsFile   string `toml:"metrics_file"`
	// MetricsAddr serves /metrics and /health while watching, e.g. "127.0.0.1:9464".
	MetricsAddr   string `toml:"metrics_addr"`
}

const (
	SinkTerminal = "terminal"
	SinkFile     = "file"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// MermaidEnabled reports whether markdown reports carry the call graph.
func (c *Config) MermaidEnabled() bool {
	return c.Report.IncludeMermaid == nil || *c.Report.IncludeMermaid
}
