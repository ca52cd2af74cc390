package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateOutput(cfg *Config) error {
	switch cfg.Output.Sink {
	case SinkTerminal, SinkFile:
	default:
		return fmt.Errorf("output.sink must be one of: %s, %s; got %q", SinkTerminal, SinkFile, cfg.Output.Sink)
	}
	if cfg.Output.Sink == SinkFile && cfg.Output.LogPath == "" {
		return fmt.Errorf("output.log_path must not be empty when output.sink is %q", SinkFile)
	}
	suffix := cfg.Output.Suffix
	if suffix == "" {
		return fmt.Errorf("output.suffix must not be empty")
	}
	if strings.ContainsAny(suffix, `/\.`) {
		return fmt.Errorf("output.suffix %q must not contain path separators or dots", suffix)
	}
	for _, r := range suffix {
		if r != '_' && (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return fmt.Errorf("output.suffix %q must be a valid identifier fragment", suffix)
		}
	}
	return nil
}

func validateInstrument(cfg *Config) []error {
	var errs []error
	for i, pattern := range cfg.Instrument.SkipFunctions {
		if _, err := glob.Compile(pattern, '.'); err != nil {
			errs = append(errs, fmt.Errorf("instrument.skip_functions[%d] %q: %v", i, pattern, err))
		}
	}
	for i, pattern := range cfg.Instrument.ExcludeScripts {
		if _, err := glob.Compile(pattern, filepath.Separator); err != nil {
			errs = append(errs, fmt.Errorf("instrument.exclude_scripts[%d] %q: %v", i, pattern, err))
		}
	}
	return errs
}

func validateReport(cfg *Config) error {
	if cfg.Report.Indent < 1 || cfg.Report.Indent > 16 {
		return fmt.Errorf("report.indent must be between 1 and 16, got %d", cfg.Report.Indent)
	}
	if !strings.HasPrefix(cfg.Report.TextSuffix, ".") {
		return fmt.Errorf("report.text_suffix %q must start with a dot", cfg.Report.TextSuffix)
	}
	if cfg.Output.LogPath != "" && filepath.Clean(cfg.Report.MarkdownPath) == filepath.Clean(cfg.Output.LogPath) {
		return fmt.Errorf("output conflict: report.markdown_path and output.log_path share the same path %q", cfg.Output.LogPath)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MaxRebuildsPerSecond <= 0 {
		return fmt.Errorf("watch.max_rebuilds_per_second must be positive")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint must be set when tracing is enabled")
	}
	return nil
}

// Validate collects every configuration problem instead of stopping at the first.
func Validate(cfg *Config) []error {
	var errs []error
	for _, check := range []func(*Config) error{
		validateVersion,
		validateOutput,
		validateReport,
		validateWatch,
		validateObservability,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return append(errs, validateInstrument(cfg)...)
}
