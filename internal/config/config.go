package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	Source SourceConfig `json:"source"`
	Editor EditorConfig `json:"editor"`
	Export ExportConfig `json:"export"`
	Vision VisionConfig `json:"vision"`
}

// SourceConfig holds validation settings for selected files
type SourceConfig struct {
	MaxBytes     int64  `json:"max_bytes"`
	AcceptPrefix string `json:"accept_prefix"`
}

// EditorConfig holds the transform control ranges and steps
type EditorConfig struct {
	MinZoom      float64 `json:"min_zoom"`
	MaxZoom      float64 `json:"max_zoom"`
	ZoomStep     float64 `json:"zoom_step"`
	MaxRotation  float64 `json:"max_rotation"`
	RotationStep float64 `json:"rotation_step"`
	MaxPan       float64 `json:"max_pan"`
	PanStep      float64 `json:"pan_step"`
}

// ExportConfig holds output generation settings
type ExportConfig struct {
	Size               int    `json:"size"`
	Format             string `json:"format"`
	Quality            int    `json:"quality"`
	Lossless           bool   `json:"lossless"`
	Background         string `json:"background"`
	AdaptiveBackground bool   `json:"adaptive_background"`
}

// VisionConfig holds auto-framing settings
type VisionConfig struct {
	EdgeWeight       float64 `json:"edge_weight"`
	BrightnessWeight float64 `json:"brightness_weight"`
	ScoreThreshold   float64 `json:"score_threshold"`
	MinSubjectRatio  float64 `json:"min_subject_ratio"`
	AnalysisMaxDim   int     `json:"analysis_max_dim"`
	SubjectPadding   float64 `json:"subject_padding"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			MaxBytes:     5 * 1024 * 1024,
			AcceptPrefix: "image/",
		},
		Editor: EditorConfig{
			MinZoom:      1.0,
			MaxZoom:      3.0,
			ZoomStep:     0.1,
			MaxRotation:  180,
			RotationStep: 1,
			MaxPan:       100,
			PanStep:      1,
		},
		Export: ExportConfig{
			Size:       300,
			Format:     "jpg",
			Quality:    90,
			Background: "#18181b",
		},
		Vision: VisionConfig{
			EdgeWeight:       0.7,
			BrightnessWeight: 0.3,
			ScoreThreshold:   0.01,
			MinSubjectRatio:  0.02,
			AnalysisMaxDim:   256,
			SubjectPadding:   1.4,
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Source.MaxBytes < 1 {
		return fmt.Errorf("source.max_bytes must be positive")
	}

	if c.Editor.MinZoom < 1 {
		return fmt.Errorf("editor.min_zoom must be at least 1")
	}

	if c.Editor.MaxZoom < c.Editor.MinZoom {
		return fmt.Errorf("editor.max_zoom must be at least editor.min_zoom")
	}

	if c.Editor.MaxRotation < 0 || c.Editor.MaxRotation > 180 {
		return fmt.Errorf("editor.max_rotation must be between 0 and 180")
	}

	if c.Editor.MaxPan < 0 {
		return fmt.Errorf("editor.max_pan must not be negative")
	}

	if c.Export.Size < 1 {
		return fmt.Errorf("export.size must be positive")
	}

	if c.Export.Quality < 1 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 1 and 100")
	}

	switch c.Export.Format {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("export.format must be one of jpg, png, webp")
	}

	if c.Vision.ScoreThreshold < 0 || c.Vision.ScoreThreshold > 1 {
		return fmt.Errorf("vision.score_threshold must be between 0 and 1")
	}

	if c.Vision.MinSubjectRatio < 0 || c.Vision.MinSubjectRatio > 1 {
		return fmt.Errorf("vision.min_subject_ratio must be between 0 and 1")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "avatar-crop", "config.json")
}
