// Package fusion reconciles primary detector output and vision-model lookups
// into one list of food items.
//
// An analysis call filters the raw detections, trusts the confident ones,
// sends the uncertain ones (tight and padded crops) to the secondary
// identifier in a single batch, and scans a coarse grid instead when the
// detector finds too little. The Engine holds no per-call state and may be
// shared between goroutines.
package fusion

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"strings"

	"github.com/menta2k/meal-analyzer/pkg/filter"
	"github.com/menta2k/meal-analyzer/pkg/foodnames"
	"github.com/menta2k/meal-analyzer/pkg/frame"
	"github.com/menta2k/meal-analyzer/pkg/geometry"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

// Detector is the primary object detector
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]types.Detection, error)
}

// Identifier names image crops. The result has the same length and order as
// crops; an empty name means no identification for that crop.
type Identifier interface {
	Identify(ctx context.Context, crops []image.Image) ([]types.Identification, error)
}

// QuantityEstimator estimates the portion size shown in a crop
type QuantityEstimator interface {
	Estimate(ctx context.Context, crop image.Image) (types.Quantity, error)
}

// Config holds the fusion parameters
type Config struct {
	Filter filter.Config `json:"filter"`
	// HighConfidence is the detector confidence trusted without a secondary lookup
	HighConfidence float64 `json:"high_confidence"`
	// MaxUncertain caps how many uncertain detections are sent for identification
	MaxUncertain int `json:"max_uncertain"`
	// PadRatio widens the second crop of an uncertain detection
	PadRatio float64 `json:"pad_ratio"`
	// MinLocalDetections below this count triggers the grid scan
	MinLocalDetections int      `json:"min_local_detections"`
	EmptyNames         []string `json:"empty_names"`
	IncludeQuantity    bool     `json:"include_quantity"`
}

// DefaultConfig returns the default fusion parameters
func DefaultConfig() Config {
	return Config{
		Filter:             filter.DefaultConfig(),
		HighConfidence:     0.55,
		MaxUncertain:       5,
		PadRatio:           0.12,
		MinLocalDetections: 2,
		EmptyNames:         append([]string(nil), DefaultEmptyNames...),
		IncludeQuantity:    false,
	}
}

// Engine drives one analysis call from raw detections to fused items
type Engine struct {
	detector   Detector
	identifier Identifier
	quantity   QuantityEstimator
	names      *foodnames.Index
	filter     *filter.Filter
	config     Config
	logger     *log.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithConfig replaces the default fusion parameters
func WithConfig(config Config) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// WithQuantityEstimator sets the estimator used when IncludeQuantity is on
func WithQuantityEstimator(q QuantityEstimator) Option {
	return func(e *Engine) {
		e.quantity = q
	}
}

// WithLogger sets the logger for fallbacks and degraded results
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine. identifier may be nil, in which case uncertain and
// grid regions are never named.
func New(detector Detector, identifier Identifier, names *foodnames.Index, opts ...Option) *Engine {
	e := &Engine{
		detector:   detector,
		identifier: identifier,
		names:      names,
		config:     DefaultConfig(),
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.names == nil {
		e.names = foodnames.NewIndex(nil)
	}
	e.filter = filter.NewWithConfig(e.config.Filter)
	return e
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Analyze runs detection and fusion on an image
func (e *Engine) Analyze(ctx context.Context, img image.Image) (*types.AnalysisResult, error) {
	fr, err := frame.New(img)
	if err != nil {
		return &types.AnalysisResult{Success: false, Items: []types.FusedItem{}, Message: err.Error()},
			fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return e.AnalyzeFrame(ctx, fr)
}

// AnalyzeFrame runs detection and fusion on a frame. Only a detector failure
// is returned as an error; identification and quantity failures degrade the
// affected items.
func (e *Engine) AnalyzeFrame(ctx context.Context, fr *frame.Frame) (*types.AnalysisResult, error) {
	raw, err := e.detector.Detect(ctx, fr.Image())
	if err != nil {
		return &types.AnalysisResult{Success: false, Items: []types.FusedItem{}, Message: err.Error()},
			fmt.Errorf("%w: %w", ErrDetectionUnavailable, err)
	}

	dets := e.filter.Apply(raw, fr.Width, fr.Height)

	if len(dets) < e.config.MinLocalDetections {
		cols, rows := GridLayout(fr.Width, fr.Height)
		e.logger.Printf("only %d usable detections, scanning %dx%d grid", len(dets), cols, rows)

		gridItems := e.scanGrid(ctx, fr)
		if len(gridItems) > len(dets) {
			e.attachQuantities(ctx, fr, gridItems)
			return &types.AnalysisResult{Success: true, Items: gridItems, Strategy: types.StrategyGrid}, nil
		}
	}

	confident, uncertain := Route(dets, e.config.HighConfidence, e.config.MaxUncertain)

	items := make([]types.FusedItem, 0, len(confident)+len(uncertain))
	for _, d := range confident {
		items = append(items, types.FusedItem{
			Box:             d.Box,
			Source:          types.SourceLocal,
			LocalConfidence: d.Confidence,
			Code:            d.ClassLabel,
			DisplayName:     e.names.DisplayName(d.ClassLabel),
		})
	}
	items = append(items, e.identifyUncertain(ctx, fr, uncertain)...)

	e.attachQuantities(ctx, fr, items)
	return &types.AnalysisResult{Success: true, Items: items, Strategy: types.StrategyLocal}, nil
}

// identifyUncertain asks the identifier about a tight and a padded crop of each
// detection in one batch and prefers the padded answer.
func (e *Engine) identifyUncertain(ctx context.Context, fr *frame.Frame, dets []types.Detection) []types.FusedItem {
	if len(dets) == 0 {
		return nil
	}

	// slot 2i is the tight crop of dets[i], slot 2i+1 the padded one
	boxes := make([]types.Box, 0, 2*len(dets))
	for _, d := range dets {
		boxes = append(boxes, d.Box, geometry.PadBox(d.Box, fr.Width, fr.Height, e.config.PadRatio))
	}
	names := e.identifyBoxes(ctx, fr, boxes)

	items := make([]types.FusedItem, 0, len(dets))
	for i, d := range dets {
		tight, padded := names[2*i], names[2*i+1]
		name := padded
		if name == "" {
			name = tight
		}

		code := e.names.Resolve(name)
		display := name
		if display == "" {
			display = e.names.DisplayName(code)
		}
		items = append(items, types.FusedItem{
			Box:             d.Box,
			Source:          types.SourceSecondary,
			LocalConfidence: d.Confidence,
			Code:            code,
			DisplayName:     display,
		})
	}
	return items
}

// scanGrid names every grid cell and keeps the cells with a usable answer
func (e *Engine) scanGrid(ctx context.Context, fr *frame.Frame) []types.FusedItem {
	cells := GridCells(fr.Width, fr.Height)
	names := e.identifyBoxes(ctx, fr, cells)

	var items []types.FusedItem
	for i, cell := range cells {
		name := names[i]
		if isEmptyName(name, e.config.EmptyNames) {
			continue
		}
		items = append(items, types.FusedItem{
			Box:             cell,
			Source:          types.SourceGrid,
			LocalConfidence: 0,
			Code:            e.names.Resolve(name),
			DisplayName:     name,
		})
	}
	return items
}

// identifyBoxes crops each box and sends all crops in a single identifier call.
// The result is indexed like boxes; crops that cannot be built or answered
// come back as empty names.
func (e *Engine) identifyBoxes(ctx context.Context, fr *frame.Frame, boxes []types.Box) []string {
	names := make([]string, len(boxes))
	if e.identifier == nil || len(boxes) == 0 {
		return names
	}

	crops := make([]image.Image, 0, len(boxes))
	slots := make([]int, 0, len(boxes))
	for i, box := range boxes {
		crop, err := fr.Crop(box)
		if err != nil {
			continue
		}
		crops = append(crops, crop)
		slots = append(slots, i)
	}
	if len(crops) == 0 {
		return names
	}

	ids, err := e.identifier.Identify(ctx, crops)
	if err != nil {
		e.logger.Printf("secondary identification failed for %d crops: %v", len(crops), fmt.Errorf("%w: %w", ErrIdentificationDegraded, err))
	}
	for j, slot := range slots {
		if j < len(ids) {
			names[slot] = strings.TrimSpace(ids[j].Name)
		}
	}
	return names
}

// attachQuantities fills quantity fields where the estimator succeeds
func (e *Engine) attachQuantities(ctx context.Context, fr *frame.Frame, items []types.FusedItem) {
	if !e.config.IncludeQuantity || e.quantity == nil {
		return
	}
	for i := range items {
		crop, err := fr.Crop(items[i].Box)
		if err != nil {
			e.logger.Printf("item %d: %v", i, fmt.Errorf("%w: %w", ErrQuantityUnavailable, err))
			continue
		}
		q, err := e.quantity.Estimate(ctx, crop)
		if err != nil {
			e.logger.Printf("item %d: %v", i, fmt.Errorf("%w: %w", ErrQuantityUnavailable, err))
			continue
		}
		items[i].Quantity = &q
	}
}
