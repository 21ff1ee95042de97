package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}

	if cfg.Export.Size != 300 {
		t.Errorf("Expected default export size 300, got %d", cfg.Export.Size)
	}
	if cfg.Source.MaxBytes != 5*1024*1024 {
		t.Errorf("Expected default max bytes 5 MiB, got %d", cfg.Source.MaxBytes)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max bytes", func(c *Config) { c.Source.MaxBytes = 0 }},
		{"min zoom below 1", func(c *Config) { c.Editor.MinZoom = 0.5 }},
		{"max zoom below min", func(c *Config) { c.Editor.MaxZoom = 0.9 }},
		{"rotation above 180", func(c *Config) { c.Editor.MaxRotation = 360 }},
		{"negative pan", func(c *Config) { c.Editor.MaxPan = -1 }},
		{"zero export size", func(c *Config) { c.Export.Size = 0 }},
		{"quality above 100", func(c *Config) { c.Export.Quality = 101 }},
		{"bad format", func(c *Config) { c.Export.Format = "bmp" }},
		{"threshold above 1", func(c *Config) { c.Vision.ScoreThreshold = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Export.Size = 512
	cfg.Export.Format = "webp"

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if loaded.Export.Size != 512 || loaded.Export.Format != "webp" {
		t.Errorf("Round trip lost values: %+v", loaded.Export)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}
