// Package mealanalyzer finds and names the dishes on a school-lunch tray photo.
//
// A primary detector proposes food boxes. Confident boxes are trusted as-is,
// uncertain ones are named by a vision language model from a tight and a
// padded crop, and when the detector finds almost nothing the tray is split
// into a coarse grid whose cells are named instead. Free-text names are
// mapped back to food codes through a normalized name table.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		mealanalyzer "github.com/menta2k/meal-analyzer"
//		"github.com/menta2k/meal-analyzer/pkg/detector"
//		"github.com/menta2k/meal-analyzer/pkg/foodnames"
//		"github.com/menta2k/meal-analyzer/pkg/identification"
//		"github.com/menta2k/meal-analyzer/pkg/ollama"
//	)
//
//	func main() {
//		cfg := detector.DefaultConfig()
//		cfg.ModelPath = "food.onnx"
//		cfg.LabelsPath = "food.labels"
//		det, err := detector.NewONNXDetector(cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer det.Close()
//
//		client, err := ollama.NewClient("http://localhost:11434")
//		if err != nil {
//			log.Fatal(err)
//		}
//		table, err := foodnames.LoadJSON("foods.json")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		analyzer := mealanalyzer.New(det, identification.NewIdentifier(client, "qwen2.5vl:7b"), foodnames.NewIndex(table))
//		result, err := analyzer.AnalyzeFile(context.Background(), "tray.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, item := range result.Items {
//			fmt.Printf("%s %s (%s)\n", item.Code, item.DisplayName, item.Source)
//		}
//	}
package mealanalyzer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"

	"github.com/menta2k/meal-analyzer/pkg/foodnames"
	"github.com/menta2k/meal-analyzer/pkg/frame"
	"github.com/menta2k/meal-analyzer/pkg/fusion"
	"github.com/menta2k/meal-analyzer/pkg/processing"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

// Version of the meal analyzer library
const Version = "1.0.0"

// DefaultMinImageSize is the smallest accepted side length in pixels
const DefaultMinImageSize = 32

// MealAnalyzer loads tray photos and runs the fusion engine on them
type MealAnalyzer struct {
	engine       *fusion.Engine
	processor    *processing.Processor
	minImageSize int
}

// New creates a MealAnalyzer. identifier may be nil to run on detections only.
func New(detector fusion.Detector, identifier fusion.Identifier, names *foodnames.Index, opts ...fusion.Option) *MealAnalyzer {
	return &MealAnalyzer{
		engine:       fusion.New(detector, identifier, names, opts...),
		processor:    processing.NewProcessor(),
		minImageSize: DefaultMinImageSize,
	}
}

// SetMinImageSize changes the smallest accepted side length
func (m *MealAnalyzer) SetMinImageSize(size int) {
	m.minImageSize = size
}

// Engine returns the underlying fusion engine
func (m *MealAnalyzer) Engine() *fusion.Engine {
	return m.engine
}

// LoadImage loads an image from a file path or an http(s) URL
func (m *MealAnalyzer) LoadImage(source string) (image.Image, error) {
	return m.processor.LoadImageSmart(source)
}

// AnalyzeImage validates an in-memory image and analyzes it
func (m *MealAnalyzer) AnalyzeImage(ctx context.Context, img image.Image) (*types.AnalysisResult, error) {
	fr, err := frame.New(img)
	if err != nil {
		return failed(err), fmt.Errorf("%w: %w", fusion.ErrInvalidFrame, err)
	}
	if err := fr.Validate(m.minImageSize); err != nil {
		return failed(err), fmt.Errorf("%w: %w", fusion.ErrInvalidFrame, err)
	}
	return m.engine.AnalyzeFrame(ctx, fr)
}

// AnalyzeFile loads an image from a path or URL and analyzes it
func (m *MealAnalyzer) AnalyzeFile(ctx context.Context, source string) (*types.AnalysisResult, error) {
	img, err := m.LoadImage(source)
	if err != nil {
		return failed(err), fmt.Errorf("failed to load image: %w", err)
	}
	return m.AnalyzeImage(ctx, img)
}

// AnalyzeBytes decodes an encoded image (jpeg, png, gif, webp) and analyzes it
func (m *MealAnalyzer) AnalyzeBytes(ctx context.Context, data []byte) (*types.AnalysisResult, error) {
	img, err := m.processor.DecodeImage(data)
	if err != nil {
		return failed(err), fmt.Errorf("failed to decode image: %w", err)
	}
	return m.AnalyzeImage(ctx, img)
}

// AnalyzeReader reads an encoded image from r and analyzes it
func (m *MealAnalyzer) AnalyzeReader(ctx context.Context, r io.Reader) (*types.AnalysisResult, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return failed(err), fmt.Errorf("failed to read image: %w", err)
	}
	return m.AnalyzeBytes(ctx, buf.Bytes())
}

// Overlay draws the result boxes on a copy of img
func (m *MealAnalyzer) Overlay(img image.Image, result *types.AnalysisResult) image.Image {
	if result == nil {
		return m.processor.CreateDebugOverlay(img, nil)
	}
	return m.processor.CreateDebugOverlay(img, result.Items)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

func failed(err error) *types.AnalysisResult {
	return &types.AnalysisResult{Success: false, Items: []types.FusedItem{}, Message: err.Error()}
}
