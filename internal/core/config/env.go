package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads KEY=value pairs from path into the process environment.
// Variables that are already set win; a missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: DEVCRAWL_[SECTION]_[KEY] (e.g., DEVCRAWL_OUTPUT_LOG_PATH).
func ApplyEnvOverrides(cfg *Config) {
	// Output
	setEnvString(&cfg.Output.Sink, "DEVCRAWL_OUTPUT_SINK")
	setEnvString(&cfg.Output.LogPath, "DEVCRAWL_OUTPUT_LOG_PATH")
	setEnvString(&cfg.Output.Suffix, "DEVCRAWL_OUTPUT_SUFFIX")
	setEnvBool(&cfg.Output.Force, "DEVCRAWL_OUTPUT_FORCE")

	// Instrument
	setEnvList(&cfg.Instrument.SkipFunctions, "DEVCRAWL_INSTRUMENT_SKIP_FUNCTIONS")
	setEnvList(&cfg.Instrument.ExcludeScripts, "DEVCRAWL_INSTRUMENT_EXCLUDE_SCRIPTS")

	// Report
	setEnvInt(&cfg.Report.Indent, "DEVCRAWL_REPORT_INDENT")
	setEnvString(&cfg.Report.MarkdownPath, "DEVCRAWL_REPORT_MARKDOWN_PATH")
	setEnvString(&cfg.Report.TextSuffix, "DEVCRAWL_REPORT_TEXT_SUFFIX")
	if val, ok := os.LookupEnv("DEVCRAWL_REPORT_INCLUDE_MERMAID"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", "DEVCRAWL_REPORT_INCLUDE_MERMAID", "value", val)
			cfg.Report.IncludeMermaid = &b
		}
	}

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "DEVCRAWL_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRebuildsPerSecond, "DEVCRAWL_WATCH_MAX_REBUILDS_PER_SECOND")

	// Observability
	setEnvBool(&cfg.Observability.EnableTracing, "DEVCRAWL_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "DEVCRAWL_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.Insecure, "DEVCRAWL_OBSERVABILITY_INSECURE")
	setEnvString(&cfg.Observability.MetricsFile, "DEVCRAWL_OBSERVABILITY_METRICS_FILE")
	setEnvString(&cfg.Observability.MetricsAddr, "DEVCRAWL_OBSERVABILITY_METRICS_ADDR")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList splits a comma separated value.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
