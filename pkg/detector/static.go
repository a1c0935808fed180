package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"os"

	"github.com/pkg/errors"

	"github.com/menta2k/meal-analyzer/pkg/types"
)

// StaticDetector replays a fixed detection list, for offline evaluation of
// the fusion stage against saved detector output
type StaticDetector struct {
	dets []types.Detection
}

// NewStatic returns a detector that always reports dets
func NewStatic(dets []types.Detection) *StaticDetector {
	return &StaticDetector{dets: append([]types.Detection(nil), dets...)}
}

// LoadStatic reads detections from a JSON file holding either an array or an
// object with a "detections" array
func LoadStatic(path string) (*StaticDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read detections file")
	}

	var dets []types.Detection
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Detections []types.Detection `json:"detections"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, errors.Wrap(err, "parse detections file")
		}
		dets = wrapped.Detections
	} else if err := json.Unmarshal(trimmed, &dets); err != nil {
		return nil, errors.Wrap(err, "parse detections file")
	}

	return NewStatic(dets), nil
}

// Detect returns a copy of the stored detections
func (s *StaticDetector) Detect(ctx context.Context, img image.Image) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]types.Detection(nil), s.dets...), nil
}
