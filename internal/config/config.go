package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/menta2k/meal-analyzer/pkg/detector"
	"github.com/menta2k/meal-analyzer/pkg/filter"
	"github.com/menta2k/meal-analyzer/pkg/foodnames"
	"github.com/menta2k/meal-analyzer/pkg/fusion"
	"github.com/menta2k/meal-analyzer/pkg/quantity"
)

// Config holds the application configuration
type Config struct {
	Filter   filter.Config  `json:"filter"`
	Routing  RoutingConfig  `json:"routing"`
	Vision   VisionConfig   `json:"vision"`
	Detector DetectorConfig `json:"detector"`
	Quantity QuantityConfig `json:"quantity"`
	Names    NamesConfig    `json:"names"`
	Output   OutputConfig   `json:"output"`
}

// RoutingConfig holds the confidence routing and grid fallback settings
type RoutingConfig struct {
	HighConfidence     float64  `json:"high_confidence"`
	MaxUncertain       int      `json:"max_uncertain"`
	PadRatio           float64  `json:"pad_ratio"`
	MinLocalDetections int      `json:"min_local_detections"`
	EmptyNames         []string `json:"empty_names"`
}

// VisionConfig selects and tunes the secondary vision model
type VisionConfig struct {
	// Backend is "ollama", "llamacpp" or "none"
	Backend     string  `json:"backend"`
	URL         string  `json:"url"`
	Model       string  `json:"model"`
	CropMaxSide int     `json:"crop_max_side"`
	CropQuality int     `json:"crop_quality"`
	Temperature float64 `json:"temperature"`
}

// DetectorConfig selects the primary detector
type DetectorConfig struct {
	// Type is "onnx" or "static"
	Type       string `json:"type"`
	StaticPath string `json:"static_path"`
	detector.Config
}

// QuantityConfig enables the optional portion classifier
type QuantityConfig struct {
	Enabled bool `json:"enabled"`
	quantity.Config
}

// NamesConfig points at the code to name table, a JSON file or a SQLite database
type NamesConfig struct {
	Path  string `json:"path"`
	Query string `json:"query"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	MinImageSize  int    `json:"min_image_size"`
	Overlay       bool   `json:"overlay"`
	OutputDir     string `json:"output_dir"`
	OverlayFormat string `json:"overlay_format"`
	Quality       int    `json:"quality"`
}

// Default returns a configuration with default values
func Default() *Config {
	engine := fusion.DefaultConfig()
	return &Config{
		Filter: engine.Filter,
		Routing: RoutingConfig{
			HighConfidence:     engine.HighConfidence,
			MaxUncertain:       engine.MaxUncertain,
			PadRatio:           engine.PadRatio,
			MinLocalDetections: engine.MinLocalDetections,
			EmptyNames:         engine.EmptyNames,
		},
		Vision: VisionConfig{
			Backend:     "ollama",
			URL:         "http://localhost:11434",
			Model:       "qwen2.5vl:7b",
			CropMaxSide: 512,
			CropQuality: 70,
			Temperature: 0.2,
		},
		Detector: DetectorConfig{
			Type:   "onnx",
			Config: detector.DefaultConfig(),
		},
		Quantity: QuantityConfig{
			Enabled: false,
			Config:  quantity.DefaultConfig(),
		},
		Names: NamesConfig{
			Query: foodnames.DefaultQuery,
		},
		Output: OutputConfig{
			MinImageSize:  32,
			Overlay:       false,
			OutputDir:     "./output",
			OverlayFormat: "jpg",
			Quality:       85,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep their
// default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
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

// LoadEnv reads KEY=value files into the process environment. Files that do
// not exist are skipped; variables already set are not overridden.
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", name, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from MEAL_* environment variables
func (c *Config) ApplyEnv() {
	c.Vision.Backend = getEnv("MEAL_VISION_BACKEND", c.Vision.Backend)
	c.Vision.URL = getEnv("MEAL_VISION_URL", c.Vision.URL)
	c.Vision.Model = getEnv("MEAL_VISION_MODEL", c.Vision.Model)
	c.Detector.ModelPath = getEnv("MEAL_DETECTOR_MODEL", c.Detector.ModelPath)
	c.Detector.LabelsPath = getEnv("MEAL_DETECTOR_LABELS", c.Detector.LabelsPath)
	c.Names.Path = getEnv("MEAL_NAMES_PATH", c.Names.Path)

	if lib := os.Getenv("MEAL_ORT_LIBRARY"); lib != "" {
		c.Detector.LibraryPath = lib
		c.Quantity.LibraryPath = lib
	}
	if model := os.Getenv("MEAL_QUANTITY_MODEL"); model != "" {
		c.Quantity.ModelPath = model
		c.Quantity.Enabled = true
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Filter.MinAreaRatio < 0 || c.Filter.MinAreaRatio > 1 {
		return fmt.Errorf("filter.min_area_ratio must be between 0 and 1")
	}

	if c.Filter.MaxBoxRatio <= 0 || c.Filter.MaxBoxRatio > 1 {
		return fmt.Errorf("filter.max_box_ratio must be in (0, 1]")
	}

	if c.Filter.IoUThreshold <= 0 || c.Filter.IoUThreshold > 1 {
		return fmt.Errorf("filter.iou_threshold must be in (0, 1]")
	}

	if c.Filter.ContainmentRatio <= 0 || c.Filter.ContainmentRatio > 1 {
		return fmt.Errorf("filter.containment_ratio must be in (0, 1]")
	}

	if c.Filter.ConfidenceFloor < 0 || c.Filter.ConfidenceFloor > 1 {
		return fmt.Errorf("filter.confidence_floor must be between 0 and 1")
	}

	if c.Filter.EnsureMin < 0 {
		return fmt.Errorf("filter.ensure_min cannot be negative")
	}

	if c.Filter.RelaxedConfidenceFloor < 0 || c.Filter.RelaxedConfidenceFloor > 1 {
		return fmt.Errorf("filter.relaxed_confidence_floor must be between 0 and 1")
	}

	if c.Filter.RelaxedIoUMargin < 0 || c.Filter.RelaxedIoUMargin > c.Filter.IoUThreshold {
		return fmt.Errorf("filter.relaxed_iou_margin must be between 0 and filter.iou_threshold")
	}

	if c.Routing.HighConfidence < 0 || c.Routing.HighConfidence > 1 {
		return fmt.Errorf("routing.high_confidence must be between 0 and 1")
	}

	if c.Routing.MaxUncertain < 0 {
		return fmt.Errorf("routing.max_uncertain cannot be negative")
	}

	if c.Routing.PadRatio < 0 || c.Routing.PadRatio > 1 {
		return fmt.Errorf("routing.pad_ratio must be between 0 and 1")
	}

	if c.Routing.MinLocalDetections < 0 {
		return fmt.Errorf("routing.min_local_detections cannot be negative")
	}

	switch strings.ToLower(c.Vision.Backend) {
	case "ollama", "llamacpp":
		if c.Vision.URL == "" {
			return fmt.Errorf("vision.url is required for backend %q", c.Vision.Backend)
		}
	case "none", "":
	default:
		return fmt.Errorf("vision.backend must be ollama, llamacpp or none")
	}

	if c.Vision.CropMaxSide < 1 {
		return fmt.Errorf("vision.crop_max_side must be positive")
	}

	if c.Vision.CropQuality < 1 || c.Vision.CropQuality > 100 {
		return fmt.Errorf("vision.crop_quality must be between 1 and 100")
	}

	switch c.Detector.Type {
	case "onnx", "static":
	default:
		return fmt.Errorf("detector.type must be onnx or static")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Output.MinImageSize < 1 {
		return fmt.Errorf("output.min_image_size must be positive")
	}

	return nil
}

// EngineConfig converts the filter and routing sections into fusion parameters
func (c *Config) EngineConfig() fusion.Config {
	return fusion.Config{
		Filter:             c.Filter,
		HighConfidence:     c.Routing.HighConfidence,
		MaxUncertain:       c.Routing.MaxUncertain,
		PadRatio:           c.Routing.PadRatio,
		MinLocalDetections: c.Routing.MinLocalDetections,
		EmptyNames:         c.Routing.EmptyNames,
		IncludeQuantity:    c.Quantity.Enabled,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "meal-analyzer", "config.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
