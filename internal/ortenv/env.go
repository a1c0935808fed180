// Package ortenv owns the process-wide onnxruntime environment and the
// fixed-shape sessions built on it.
package ortenv

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init loads the onnxruntime shared library and initializes the environment.
// Only the first call does any work; later calls return its result.
func Init(libraryPath string) error {
	initOnce.Do(func() {
		if libraryPath != "" {
			if _, err := os.Stat(libraryPath); err != nil {
				initErr = errors.Wrapf(err, "onnxruntime library not found at %s", libraryPath)
				return
			}
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = errors.Wrap(err, "initialize onnxruntime environment")
		}
	})
	return initErr
}

// Session is a single-input single-output float32 model with preallocated tensors
type Session struct {
	Session     *ort.AdvancedSession
	Input       *ort.Tensor[float32]
	Output      *ort.Tensor[float32]
	OutputShape ort.Shape
}

// NewSession opens modelPath with the given input shape. Tensor names and the
// output shape are read from the model; a dynamic batch dimension is pinned to 1.
func NewSession(modelPath string, inputShape ort.Shape, threads int) (*Session, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", modelPath)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read model info from %s", modelPath)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, errors.Errorf("expected 1 input and at least 1 output, model has %d and %d", len(inputs), len(outputs))
	}

	outputShape, err := staticShape(outputs[0].Dimensions)
	if err != nil {
		return nil, errors.Wrapf(err, "output %q", outputs[0].Name)
	}

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	if threads > 0 {
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			input.Destroy()
			output.Destroy()
			return nil, errors.Wrap(err, "set intra-op threads")
		}
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "create session")
	}

	return &Session{
		Session:     session,
		Input:       input,
		Output:      output,
		OutputShape: outputShape,
	}, nil
}

// Run executes the model on the current input tensor contents
func (s *Session) Run() error {
	return s.Session.Run()
}

// Close releases the tensors and the session
func (s *Session) Close() error {
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
	if s.Session != nil {
		err := s.Session.Destroy()
		s.Session = nil
		return err
	}
	return nil
}

func staticShape(dims ort.Shape) (ort.Shape, error) {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		switch {
		case d > 0:
			shape[i] = d
		case i == 0:
			shape[i] = 1
		default:
			return nil, errors.Errorf("dimension %d is dynamic in %v", i, dims)
		}
	}
	return shape, nil
}
