package config

import (
	"strings"
	"testing"
)

func hasError(errs []error, fragment string) bool {
	for _, err := range errs {
		if strings.Contains(err.Error(), fragment) {
			return true
		}
	}
	return false
}

func TestValidateDefaults(t *testing.T) {
	if errs := Validate(Default()); len(errs) != 0 {
		t.Fatalf("expected defaults to validate, got %v", errs)
	}
}

func TestValidateOutputConflicts(t *testing.T) {
	cfg := Default()
	cfg.Output.LogPath = "trace.md"
	cfg.Report.MarkdownPath = "./trace.md"

	errs := Validate(cfg)
	if !hasError(errs, `output conflict: report.markdown_path and output.log_path share the same path "trace.md"`) {
		t.Errorf("Expected output conflict error, got %v", errs)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"sink", func(c *Config) { c.Output.Sink = "syslog" }, "output.sink must be one of"},
		{"suffix dot", func(c *Config) { c.Output.Suffix = ".dbg" }, "must not contain path separators or dots"},
		{"suffix dash", func(c *Config) { c.Output.Suffix = "-dbg" }, "valid identifier fragment"},
		{"indent", func(c *Config) { c.Report.Indent = 40 }, "report.indent must be between 1 and 16"},
		{"text suffix", func(c *Config) { c.Report.TextSuffix = "txt" }, "must start with a dot"},
		{"rate", func(c *Config) { c.Watch.MaxRebuildsPerSecond = 0 }, "watch.max_rebuilds_per_second must be positive"},
		{"tracing", func(c *Config) {
			c.Observability.EnableTracing = true
			c.Observability.OTLPEndpoint = ""
		}, "observability.otlp_endpoint must be set"},
		{"version", func(c *Config) { c.Version = 3 }, "unsupported config version 3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			errs := Validate(cfg)
			if !hasError(errs, tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, errs)
			}
		})
	}
}
