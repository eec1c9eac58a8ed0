package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test limit defaults
	if cfg.Limits.MaxLiterals != 511 {
		t.Errorf("Expected MaxLiterals=511, got %d", cfg.Limits.MaxLiterals)
	}
	if cfg.Limits.MaxRegisters != 128 {
		t.Errorf("Expected MaxRegisters=128, got %d", cfg.Limits.MaxRegisters)
	}
	if cfg.Limits.MaxStackDepth != 1024 {
		t.Errorf("Expected MaxStackDepth=1024, got %d", cfg.Limits.MaxStackDepth)
	}
	if cfg.Limits.MaxCodeSize != 65535 {
		t.Errorf("Expected MaxCodeSize=65535, got %d", cfg.Limits.MaxCodeSize)
	}

	// Test display defaults
	if !cfg.Display.ShowLiterals {
		t.Error("Expected ShowLiterals=true")
	}
	if cfg.Display.BytesPerLine != 16 {
		t.Errorf("Expected BytesPerLine=16, got %d", cfg.Display.BytesPerLine)
	}

	// Test snapshot defaults
	if cfg.Snapshot.CompressionLevel != 2 {
		t.Errorf("Expected CompressionLevel=2, got %d", cfg.Snapshot.CompressionLevel)
	}
	if !cfg.Snapshot.Verify {
		t.Error("Expected Verify=true")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	// Verify path is not empty
	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}

	// Verify path ends with config.toml
	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected config path to end with config.toml, got %s", path)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFrom on missing file should return defaults, got %v", err)
	}
	if cfg.Limits.MaxLiterals != 511 {
		t.Errorf("Expected default MaxLiterals=511, got %d", cfg.Limits.MaxLiterals)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[limits]
max_literals = 255
max_registers = 32

[snapshot]
compression_level = 4
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Limits.MaxLiterals != 255 {
		t.Errorf("Expected MaxLiterals=255, got %d", cfg.Limits.MaxLiterals)
	}
	if cfg.Limits.MaxRegisters != 32 {
		t.Errorf("Expected MaxRegisters=32, got %d", cfg.Limits.MaxRegisters)
	}
	// Untouched sections keep their defaults
	if cfg.Limits.MaxStackDepth != 1024 {
		t.Errorf("Expected MaxStackDepth=1024, got %d", cfg.Limits.MaxStackDepth)
	}
	if cfg.Snapshot.CompressionLevel != 4 {
		t.Errorf("Expected CompressionLevel=4, got %d", cfg.Snapshot.CompressionLevel)
	}
}

func TestLoadFromInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[limits]
max_literals = 100000
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("Expected out-of-range max_literals to fail validation")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.Limits.MaxRegisters = 64
	cfg.Display.ShowHeader = false

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Limits.MaxRegisters != 64 {
		t.Errorf("Expected MaxRegisters=64, got %d", loaded.Limits.MaxRegisters)
	}
	if loaded.Display.ShowHeader {
		t.Error("Expected ShowHeader=false after reload")
	}
}
