package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	mealanalyzer "github.com/menta2k/meal-analyzer"
	"github.com/menta2k/meal-analyzer/internal/config"
	"github.com/menta2k/meal-analyzer/pkg/client"
	"github.com/menta2k/meal-analyzer/pkg/detector"
	"github.com/menta2k/meal-analyzer/pkg/foodnames"
	"github.com/menta2k/meal-analyzer/pkg/fusion"
	"github.com/menta2k/meal-analyzer/pkg/identification"
	"github.com/menta2k/meal-analyzer/pkg/llamacpp"
	"github.com/menta2k/meal-analyzer/pkg/ollama"
	"github.com/menta2k/meal-analyzer/pkg/quantity"
)

// components holds everything built from the configuration
type components struct {
	analyzer   *mealanalyzer.MealAnalyzer
	identifier *identification.Identifier
	closers    []io.Closer
}

func (c *components) Close() {
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*components, error) {
	c := &components{}

	det, err := newDetector(cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	visionClient, err := newVisionClient(cfg.Vision)
	if err != nil {
		c.Close()
		return nil, err
	}
	var identifier fusion.Identifier
	if visionClient != nil {
		c.identifier = identification.NewIdentifier(visionClient, cfg.Vision.Model,
			identification.WithCropEncoding(cfg.Vision.CropMaxSide, cfg.Vision.CropQuality))
		identifier = c.identifier
	}

	names, err := loadNames(ctx, cfg.Names)
	if err != nil {
		c.Close()
		return nil, err
	}
	if names.Len() == 0 {
		logger.Printf("no name table configured, every secondary name resolves to %s", foodnames.UnknownCode)
	}

	opts := []fusion.Option{
		fusion.WithConfig(cfg.EngineConfig()),
		fusion.WithLogger(logger),
	}
	if cfg.Quantity.Enabled {
		estimator, err := quantity.NewEstimator(cfg.Quantity.Config)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to load quantity model: %w", err)
		}
		c.closers = append(c.closers, estimator)
		opts = append(opts, fusion.WithQuantityEstimator(estimator))
	}

	c.analyzer = mealanalyzer.New(det, identifier, names, opts...)
	c.analyzer.SetMinImageSize(cfg.Output.MinImageSize)
	return c, nil
}

func newDetector(cfg *config.Config, c *components) (fusion.Detector, error) {
	switch cfg.Detector.Type {
	case "static":
		det, err := detector.LoadStatic(cfg.Detector.StaticPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load static detections: %w", err)
		}
		return det, nil
	default:
		det, err := detector.NewONNXDetector(cfg.Detector.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to load detector: %w", err)
		}
		c.closers = append(c.closers, det)
		return det, nil
	}
}

func newVisionClient(cfg config.VisionConfig) (client.VisionClient, error) {
	switch strings.ToLower(cfg.Backend) {
	case "ollama":
		c, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		c.SetTemperature(cfg.Temperature)
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		c.SetTemperature(cfg.Temperature)
		return c, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown vision backend: %s (use 'ollama', 'llamacpp' or 'none')", cfg.Backend)
	}
}

func loadNames(ctx context.Context, cfg config.NamesConfig) (*foodnames.Index, error) {
	if cfg.Path == "" {
		return foodnames.NewIndex(nil), nil
	}

	var table foodnames.Table
	var err error
	switch strings.ToLower(filepath.Ext(cfg.Path)) {
	case ".db", ".sqlite", ".sqlite3":
		table, err = foodnames.LoadSQLite(ctx, cfg.Path, cfg.Query)
	default:
		table, err = foodnames.LoadJSON(cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load name table: %w", err)
	}
	return foodnames.NewIndex(table), nil
}
