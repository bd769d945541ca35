package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.MaxIterations != 10 {
		t.Errorf("Expected MaxIterations 10, got %d", cfg.MaxIterations)
	}
	if cfg.ModelRetries != 3 {
		t.Errorf("Expected ModelRetries 3, got %d", cfg.ModelRetries)
	}
	if cfg.ToolRetries != 2 {
		t.Errorf("Expected ToolRetries 2, got %d", cfg.ToolRetries)
	}
	if cfg.DomainTimeout != 30*time.Second {
		t.Errorf("Expected DomainTimeout 30s, got %v", cfg.DomainTimeout)
	}
	if cfg.WorkerLimit != 3 {
		t.Errorf("Expected WorkerLimit 3, got %d", cfg.WorkerLimit)
	}
}

func TestApplyDefaultsKeepsExplicit(t *testing.T) {
	cfg := Config{Model: "gpt-4o", MaxIterations: 5}
	cfg.ApplyDefaults()

	if cfg.Model != "gpt-4o" {
		t.Errorf("Expected explicit model kept, got %s", cfg.Model)
	}
	if cfg.MaxIterations != 5 {
		t.Errorf("Expected explicit iteration cap kept, got %d", cfg.MaxIterations)
	}
	if cfg.WorkerLimit != 3 {
		t.Errorf("Expected default worker limit, got %d", cfg.WorkerLimit)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "provider: google\nmodel: gemini-2.0-flash\ndebounce_delay: 6s\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "google" {
		t.Errorf("Expected provider google, got %s", cfg.Provider)
	}
	if cfg.Model != "gemini-2.0-flash" {
		t.Errorf("Expected model gemini-2.0-flash, got %s", cfg.Model)
	}
	if cfg.DebounceDelay != 6*time.Second {
		t.Errorf("Expected 6s debounce, got %v", cfg.DebounceDelay)
	}
	// Unset fields still get defaults
	if cfg.MaxIterations != 10 {
		t.Errorf("Expected default iteration cap, got %d", cfg.MaxIterations)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Missing file should not error: %v", err)
	}
	if cfg.MaxIterations != 10 {
		t.Error("Defaults should apply when file is missing")
	}
}

func TestEnvConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.config")

	if err := WriteEnvConfig(path, map[string]string{"A": "1", "B": "two"}); err != nil {
		t.Fatalf("WriteEnvConfig failed: %v", err)
	}

	got := ReadEnvConfig(path)
	if got["A"] != "1" || got["B"] != "two" {
		t.Errorf("Round trip mismatch: %v", got)
	}

	if err := MergeEnvConfig(path, map[string]string{"B": "three", "C": "4"}); err != nil {
		t.Fatalf("MergeEnvConfig failed: %v", err)
	}
	got = ReadEnvConfig(path)
	if got["A"] != "1" || got["B"] != "three" || got["C"] != "4" {
		t.Errorf("Merge mismatch: %v", got)
	}
}
