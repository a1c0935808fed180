package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meal-analyzer/pkg/types"
)

func concat(parts ...[]float32) []float32 {
	var out []float32
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func testParams() DecodeParams {
	return DecodeParams{
		NumClasses:          2,
		NumAnchors:          4,
		InputSize:           100,
		FrameW:              200,
		FrameH:              100,
		ConfidenceThreshold: 0.1,
		NMSThreshold:        0.5,
		Labels:              []string{"01011001", "06012004"},
	}
}

func TestDecode(t *testing.T) {
	output := concat(
		[]float32{25, 26, 25, 80},      // xc
		[]float32{25, 25, 25, 80},      // yc
		[]float32{20, 20, 20, 10},      // w
		[]float32{20, 20, 20, 10},      // h
		[]float32{0.9, 0.6, 0.2, 0.05}, // class 0
		[]float32{0.1, 0.1, 0.7, 0.02}, // class 1
	)

	dets, err := Decode(output, testParams())

	require.NoError(t, err)
	require.Len(t, dets, 2, "same-class overlap is suppressed and the weak anchor dropped")

	assert.Equal(t, types.Box{X1: 30, Y1: 15, X2: 70, Y2: 35}, dets[0].Box)
	assert.Equal(t, "01011001", dets[0].ClassLabel)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)

	assert.Equal(t, dets[0].Box, dets[1].Box, "different classes survive suppression")
	assert.Equal(t, "06012004", dets[1].ClassLabel)
	assert.InDelta(t, 0.7, dets[1].Confidence, 1e-6)
}

func TestDecodeClipsToFrame(t *testing.T) {
	p := testParams()
	p.NumAnchors = 1
	output := []float32{95, 50, 20, 20, 0.8, 0.1}

	dets, err := Decode(output, p)

	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, types.Box{X1: 170, Y1: 40, X2: 200, Y2: 60}, dets[0].Box)
}

func TestDecodeUnknownLabel(t *testing.T) {
	p := testParams()
	p.NumAnchors = 1
	p.Labels = nil

	dets, err := Decode([]float32{50, 50, 10, 10, 0.1, 0.9}, p)

	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "class_1", dets[0].ClassLabel)
}

func TestDecodeShortOutput(t *testing.T) {
	_, err := Decode(make([]float32, 10), testParams())
	assert.Error(t, err)
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("# food codes\n01011001\n\n 06012004 \n"), 0o644))

	labels, err := LoadLabels(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"01011001", "06012004"}, labels)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o644))
	_, err = LoadLabels(empty)
	assert.Error(t, err)
}

func TestStaticDetector(t *testing.T) {
	dir := t.TempDir()
	array := filepath.Join(dir, "array.json")
	wrapped := filepath.Join(dir, "wrapped.json")
	require.NoError(t, os.WriteFile(array, []byte(`[{"box":{"x1":1,"y1":2,"x2":30,"y2":40},"confidence":0.8,"class_name":"01011001"}]`), 0o644))
	require.NoError(t, os.WriteFile(wrapped, []byte(`{"detections":[{"box":{"x1":1,"y1":2,"x2":30,"y2":40},"confidence":0.8,"class_name":"01011001"}]}`), 0o644))

	for _, path := range []string{array, wrapped} {
		d, err := LoadStatic(path)
		require.NoError(t, err, path)

		dets, err := d.Detect(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, dets, 1)
		assert.Equal(t, types.Box{X1: 1, Y1: 2, X2: 30, Y2: 40}, dets[0].Box)
		assert.Equal(t, "01011001", dets[0].ClassLabel)

		// callers may mutate the result freely
		dets[0].Confidence = 0
		again, _ := d.Detect(context.Background(), nil)
		assert.Equal(t, 0.8, again[0].Confidence)
	}
}

func TestStaticDetectorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStatic(nil).Detect(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
