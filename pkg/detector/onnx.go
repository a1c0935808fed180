// Package detector provides primary food detectors: an onnxruntime YOLO
// model and a static replay of precomputed detections.
package detector

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/menta2k/meal-analyzer/internal/ortenv"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

// Config holds the ONNX detector settings
type Config struct {
	ModelPath           string  `json:"model_path"`
	LabelsPath          string  `json:"labels_path"`
	LibraryPath         string  `json:"library_path"`
	InputSize           int     `json:"input_size"`
	ConfidenceThreshold float32 `json:"confidence_threshold"`
	NMSThreshold        float64 `json:"nms_threshold"`
	Threads             int     `json:"threads"`
}

// DefaultConfig returns settings for a 640px YOLO export. The confidence
// threshold sits below the filter floors so the relaxed refill pass has
// candidates to work with.
func DefaultConfig() Config {
	return Config{
		InputSize:           640,
		ConfidenceThreshold: 0.1,
		NMSThreshold:        0.5,
		Threads:             4,
	}
}

// ONNXDetector runs a YOLO-style food detector through onnxruntime
type ONNXDetector struct {
	mu         sync.Mutex
	session    *ortenv.Session
	labels     []string
	config     Config
	numClasses int
	numAnchors int
}

// NewONNXDetector loads the model and its labels
func NewONNXDetector(config Config) (*ONNXDetector, error) {
	if config.InputSize <= 0 {
		config.InputSize = DefaultConfig().InputSize
	}

	labels, err := LoadLabels(config.LabelsPath)
	if err != nil {
		return nil, err
	}

	if err := ortenv.Init(config.LibraryPath); err != nil {
		return nil, err
	}

	size := int64(config.InputSize)
	session, err := ortenv.NewSession(config.ModelPath, ort.NewShape(1, 3, size, size), config.Threads)
	if err != nil {
		return nil, errors.Wrap(err, "load detector model")
	}

	shape := session.OutputShape
	if len(shape) != 3 || shape[1] <= 4 {
		session.Close()
		return nil, errors.Errorf("unexpected detector output shape %v, want [1, 4+classes, anchors]", shape)
	}
	numClasses := int(shape[1]) - 4
	if numClasses != len(labels) {
		session.Close()
		return nil, errors.Errorf("model has %d classes but %d labels were loaded", numClasses, len(labels))
	}

	return &ONNXDetector{
		session:    session,
		labels:     labels,
		config:     config,
		numClasses: numClasses,
		numAnchors: int(shape[2]),
	}, nil
}

// Detect runs the model on img. Calls are serialized because the session
// reuses its tensors.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]types.Detection, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, errors.New("detector closed")
	}

	if err := ortenv.FillCHW(img, d.session.Input.GetData(), d.config.InputSize, ortenv.UnitScale); err != nil {
		return nil, errors.Wrap(err, "prepare detector input")
	}
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run detector")
	}

	b := img.Bounds()
	dets, err := Decode(d.session.Output.GetData(), DecodeParams{
		NumClasses:          d.numClasses,
		NumAnchors:          d.numAnchors,
		InputSize:           d.config.InputSize,
		FrameW:              b.Dx(),
		FrameH:              b.Dy(),
		ConfidenceThreshold: d.config.ConfidenceThreshold,
		NMSThreshold:        d.config.NMSThreshold,
		Labels:              d.labels,
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode detector output")
	}
	return dets, nil
}

// Labels returns the class labels in model order
func (d *ONNXDetector) Labels() []string {
	return d.labels
}

// Close releases the onnxruntime session
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	return err
}
