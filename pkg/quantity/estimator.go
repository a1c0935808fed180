// Package quantity estimates portion sizes with an image classifier.
package quantity

import (
	"context"
	"image"
	"sync"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/menta2k/meal-analyzer/internal/ortenv"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

// DefaultLabels are the five portion classes, smallest first
var DefaultLabels = []string{"Q1", "Q2", "Q3", "Q4", "Q5"}

// Config holds the classifier settings
type Config struct {
	ModelPath   string   `json:"model_path"`
	LibraryPath string   `json:"library_path"`
	InputSize   int      `json:"input_size"`
	Labels      []string `json:"labels"`
	Threads     int      `json:"threads"`
}

// DefaultConfig returns settings for a 224px ImageNet-normalized classifier
func DefaultConfig() Config {
	return Config{
		InputSize: 224,
		Labels:    append([]string(nil), DefaultLabels...),
		Threads:   2,
	}
}

// Estimator classifies crops into portion labels
type Estimator struct {
	mu      sync.Mutex
	session *ortenv.Session
	config  Config
}

// NewEstimator loads the classifier model
func NewEstimator(config Config) (*Estimator, error) {
	if config.InputSize <= 0 {
		config.InputSize = 224
	}
	if len(config.Labels) == 0 {
		config.Labels = append([]string(nil), DefaultLabels...)
	}

	if err := ortenv.Init(config.LibraryPath); err != nil {
		return nil, err
	}

	size := int64(config.InputSize)
	session, err := ortenv.NewSession(config.ModelPath, ort.NewShape(1, 3, size, size), config.Threads)
	if err != nil {
		return nil, errors.Wrap(err, "load quantity model")
	}
	if n := session.OutputShape.FlattenedSize(); int(n) != len(config.Labels) {
		session.Close()
		return nil, errors.Errorf("quantity model has %d outputs but %d labels are configured", n, len(config.Labels))
	}

	return &Estimator{session: session, config: config}, nil
}

// Estimate returns the most likely portion label for a crop
func (e *Estimator) Estimate(ctx context.Context, crop image.Image) (types.Quantity, error) {
	if err := ctx.Err(); err != nil {
		return types.Quantity{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return types.Quantity{}, errors.New("estimator closed")
	}

	if err := ortenv.FillCHW(crop, e.session.Input.GetData(), e.config.InputSize, ortenv.ImageNet); err != nil {
		return types.Quantity{}, errors.Wrap(err, "prepare quantity input")
	}
	if err := e.session.Run(); err != nil {
		return types.Quantity{}, errors.Wrap(err, "run quantity model")
	}
	return Top1(e.session.Output.GetData(), e.config.Labels)
}

// Close releases the onnxruntime session
func (e *Estimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}

// Top1 picks the highest softmax probability among logits
func Top1(logits []float32, labels []string) (types.Quantity, error) {
	if len(logits) == 0 || len(logits) != len(labels) {
		return types.Quantity{}, errors.Errorf("got %d logits for %d labels", len(logits), len(labels))
	}

	probs := Softmax(logits)
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return types.Quantity{Label: labels[best], Confidence: float64(probs[best])}, nil
}

// Softmax converts logits into probabilities
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}

	peak := logits[0]
	for _, v := range logits[1:] {
		peak = math32.Max(peak, v)
	}

	out := make([]float32, len(logits))
	var sum float32
	for i, v := range logits {
		out[i] = math32.Exp(v - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
