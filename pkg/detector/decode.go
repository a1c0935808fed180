package detector

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"

	"github.com/menta2k/meal-analyzer/pkg/geometry"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

// DecodeParams describes a YOLO-style [1, 4+C, N] output tensor
type DecodeParams struct {
	NumClasses int
	NumAnchors int
	// InputSize is the square side the frame was resized to
	InputSize int
	FrameW    int
	FrameH    int
	// ConfidenceThreshold drops anchors whose best class score is lower
	ConfidenceThreshold float32
	// NMSThreshold suppresses same-class boxes overlapping more than this
	NMSThreshold float64
	Labels       []string
}

// Decode turns raw model output into frame-space detections, best first.
// Each anchor contributes its best class; suppression is per class.
func Decode(output []float32, p DecodeParams) ([]types.Detection, error) {
	n := p.NumAnchors
	if need := (4 + p.NumClasses) * n; len(output) < need {
		return nil, fmt.Errorf("output holds %d values, need %d for %d classes x %d anchors", len(output), need, p.NumClasses, n)
	}
	if p.InputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d", p.InputSize)
	}

	sx := float32(p.FrameW) / float32(p.InputSize)
	sy := float32(p.FrameH) / float32(p.InputSize)

	var candidates []types.Detection
	for idx := 0; idx < n; idx++ {
		classID := -1
		best := float32(-1)
		for c := 0; c < p.NumClasses; c++ {
			if s := output[(4+c)*n+idx]; s > best {
				best = s
				classID = c
			}
		}
		if classID < 0 || best < p.ConfidenceThreshold {
			continue
		}

		xc, yc := output[idx], output[n+idx]
		w, h := output[2*n+idx], output[3*n+idx]
		box := types.Box{
			X1: int(math32.Round((xc - w/2) * sx)),
			Y1: int(math32.Round((yc - h/2) * sy)),
			X2: int(math32.Round((xc + w/2) * sx)),
			Y2: int(math32.Round((yc + h/2) * sy)),
		}
		box = geometry.Clip(box, p.FrameW, p.FrameH)
		if box.Width() == 0 || box.Height() == 0 {
			continue
		}

		candidates = append(candidates, types.Detection{
			Box:        box,
			Confidence: float64(best),
			ClassLabel: label(p.Labels, classID),
		})
	}

	return suppress(candidates, p.NMSThreshold), nil
}

// suppress is greedy per-class non-maximum suppression
func suppress(dets []types.Detection, threshold float64) []types.Detection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	kept := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		overlaps := false
		for _, k := range kept {
			if k.ClassLabel == d.ClassLabel && geometry.IoU(k.Box, d.Box) > threshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, d)
		}
	}
	return kept
}

func label(labels []string, classID int) string {
	if classID >= 0 && classID < len(labels) {
		return labels[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}
