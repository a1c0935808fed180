// Package filter drops unusable detections and removes same-class duplicates.
package filter

import (
	"sort"

	"github.com/menta2k/meal-analyzer/pkg/geometry"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

// Config holds the thresholds applied to raw detections
type Config struct {
	// MinAreaRatio drops boxes smaller than this fraction of the frame
	MinAreaRatio float64 `json:"min_area_ratio"`
	// ConfidenceFloor drops detections below this confidence
	ConfidenceFloor float64 `json:"confidence_floor"`
	// IoUThreshold marks same-class boxes above this overlap as duplicates
	IoUThreshold float64 `json:"iou_threshold"`
	// ContainmentRatio marks a same-class box nested in another (at or below
	// this area ratio) as a duplicate
	ContainmentRatio float64 `json:"containment_ratio"`
	// MaxBoxRatio drops boxes covering more than this fraction of the frame
	MaxBoxRatio float64 `json:"max_box_ratio"`
	// ExcludedClasses are aggregate labels (tray, plate) that are not foods
	ExcludedClasses  []string `json:"excluded_classes"`
	NullClass        string   `json:"null_class"`
	ExcludeNullClass bool     `json:"exclude_null_class"`
	// EnsureMin triggers a relaxed refill pass when fewer detections survive; 0 disables it
	EnsureMin              int     `json:"ensure_min"`
	RelaxedConfidenceFloor float64 `json:"relaxed_confidence_floor"`
	// RelaxedIoUMargin is subtracted from IoUThreshold during the relaxed pass
	RelaxedIoUMargin float64 `json:"relaxed_iou_margin"`
}

// DefaultConfig returns the thresholds tuned for school-lunch tray photos
func DefaultConfig() Config {
	return Config{
		MinAreaRatio:           0.01,
		ConfidenceFloor:        0.25,
		IoUThreshold:           0.7,
		ContainmentRatio:       0.9,
		MaxBoxRatio:            0.5,
		ExcludedClasses:        []string{"급식", "식판", "트레이"},
		NullClass:              "00000000",
		ExcludeNullClass:       true,
		EnsureMin:              0,
		RelaxedConfidenceFloor: 0.15,
		RelaxedIoUMargin:       0.2,
	}
}

// Filter removes unusable detections and deduplicates the rest
type Filter struct {
	config   Config
	excluded map[string]struct{}
}

// New creates a Filter with default configuration
func New() *Filter {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Filter with custom configuration
func NewWithConfig(config Config) *Filter {
	excluded := make(map[string]struct{}, len(config.ExcludedClasses))
	for _, c := range config.ExcludedClasses {
		excluded[c] = struct{}{}
	}
	return &Filter{config: config, excluded: excluded}
}

// Config returns the filter configuration
func (f *Filter) Config() Config {
	return f.config
}

// Apply filters detections against a frame of the given size and returns the
// survivors ordered by confidence, highest first. It does not modify the input.
func (f *Filter) Apply(dets []types.Detection, frameW, frameH int) []types.Detection {
	if len(dets) == 0 || frameW <= 0 || frameH <= 0 {
		return nil
	}

	frameArea := float64(frameW) * float64(frameH)
	minArea := f.config.MinAreaRatio * frameArea
	maxArea := f.config.MaxBoxRatio * frameArea

	// candidates passed the structural checks; the relaxed pass draws from them
	candidates := make([]types.Detection, 0, len(dets))
	passed := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		d.Box = geometry.Clip(d.Box, frameW, frameH)
		if !f.eligibleClass(d.ClassLabel) {
			continue
		}
		area := float64(geometry.Area(d.Box))
		if area > maxArea {
			continue
		}
		candidates = append(candidates, d)

		if area < minArea {
			continue
		}
		if d.Confidence < f.config.ConfidenceFloor {
			continue
		}
		passed = append(passed, d)
	}

	byConfidence(passed)

	kept := make([]types.Detection, 0, len(passed))
	for _, d := range passed {
		if f.isDuplicate(d, kept) {
			continue
		}
		kept = append(kept, d)
	}

	if f.config.EnsureMin > 0 && len(kept) < f.config.EnsureMin {
		kept = f.refill(kept, candidates, minArea)
		byConfidence(kept)
	}

	return kept
}

func (f *Filter) eligibleClass(label string) bool {
	if f.config.ExcludeNullClass && label == f.config.NullClass {
		return false
	}
	_, excluded := f.excluded[label]
	return !excluded
}

// isDuplicate reports whether d overlaps or nests with an already kept box of the same class
func (f *Filter) isDuplicate(d types.Detection, kept []types.Detection) bool {
	for _, k := range kept {
		if k.ClassLabel != d.ClassLabel {
			continue
		}
		if geometry.IoU(d.Box, k.Box) > f.config.IoUThreshold {
			return true
		}
		if geometry.IsContained(d.Box, k.Box, f.config.ContainmentRatio) ||
			geometry.IsContained(k.Box, d.Box, f.config.ContainmentRatio) {
			return true
		}
	}
	return false
}

// refill re-admits lower-confidence detections that stay clear of every kept box
func (f *Filter) refill(kept, candidates []types.Detection, minArea float64) []types.Detection {
	relaxedArea := max(minArea*0.5, 1.0)
	relaxedIoU := f.config.IoUThreshold - f.config.RelaxedIoUMargin

	byConfidence(candidates)
	for _, d := range candidates {
		if len(kept) >= f.config.EnsureMin {
			break
		}
		if contains(kept, d) {
			continue
		}
		if d.Confidence < f.config.RelaxedConfidenceFloor {
			continue
		}
		if float64(geometry.Area(d.Box)) < relaxedArea {
			continue
		}

		isolated := true
		for _, k := range kept {
			if geometry.IoU(d.Box, k.Box) > relaxedIoU {
				isolated = false
				break
			}
			if k.ClassLabel == d.ClassLabel &&
				(geometry.IsContained(d.Box, k.Box, f.config.ContainmentRatio) ||
					geometry.IsContained(k.Box, d.Box, f.config.ContainmentRatio)) {
				isolated = false
				break
			}
		}
		if isolated {
			kept = append(kept, d)
		}
	}
	return kept
}

func contains(dets []types.Detection, d types.Detection) bool {
	for _, k := range dets {
		if k == d {
			return true
		}
	}
	return false
}

func byConfidence(dets []types.Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}
