package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReloader_DeliversChangedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devcrawl.toml")
	if err := os.WriteFile(path, []byte("[output]\nsuffix = \"_debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	r := NewReloader(path, func(cfg *Config) { reloaded <- cfg })
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	// Same bytes: no reload.
	if err := os.WriteFile(path, []byte("[output]\nsuffix = \"_debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-reloaded:
		t.Fatalf("unexpected reload with suffix %q", cfg.Output.Suffix)
	case <-time.After(400 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("[output]\nsuffix = \"_trace\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-reloaded:
		if cfg.Output.Suffix != "_trace" {
			t.Fatalf("expected reloaded suffix _trace, got %q", cfg.Output.Suffix)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestReloader_IgnoresInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devcrawl.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	r := NewReloader(path, func(cfg *Config) { reloaded <- cfg })
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()

	if err := os.WriteFile(path, []byte("[output\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reloaded:
		t.Fatal("invalid config must not be delivered")
	case <-time.After(500 * time.Millisecond):
	}
	r.Stop()
}
