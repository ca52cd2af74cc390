// # internal/core/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalize(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists. A missing file is only an error
// when the caller named it explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg := Default()
			ApplyEnvOverrides(cfg)
			normalize(cfg)
			if errs := Validate(cfg); len(errs) > 0 {
				return nil, errors.Join(errs...)
			}
			return cfg, nil
		}
		return nil, err
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Output.Sink) == "" {
		cfg.Output.Sink = SinkTerminal
	}
	if strings.TrimSpace(cfg.Output.LogPath) == "" {
		cfg.Output.LogPath = "debug.log"
	}
	if strings.TrimSpace(cfg.Output.Suffix) == "" {
		cfg.Output.Suffix = "_debug"
	}

	if cfg.Report.Indent <= 0 {
		cfg.Report.Indent = 4
	}
	if strings.TrimSpace(cfg.Report.MarkdownPath) == "" {
		cfg.Report.MarkdownPath = "debug_log.md"
	}
	if strings.TrimSpace(cfg.Report.TextSuffix) == "" {
		cfg.Report.TextSuffix = ".txt"
	}
	if cfg.Report.IncludeMermaid == nil {
		enabled := true
		cfg.Report.IncludeMermaid = &enabled
	}

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.Watch.MaxRebuildsPerSecond <= 0 {
		cfg.Watch.MaxRebuildsPerSecond = 2
	}

	if strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
}

func normalize(cfg *Config) {
	cfg.Output.Sink = strings.ToLower(strings.TrimSpace(cfg.Output.Sink))
	cfg.Output.LogPath = strings.TrimSpace(cfg.Output.LogPath)
	cfg.Output.Suffix = strings.TrimSpace(cfg.Output.Suffix)
	cfg.Report.MarkdownPath = strings.TrimSpace(cfg.Report.MarkdownPath)
	cfg.Instrument.SkipFunctions = compact(cfg.Instrument.SkipFunctions)
	cfg.Instrument.ExcludeScripts = compact(cfg.Instrument.ExcludeScripts)
}

func compact(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
