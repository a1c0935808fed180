package mealanalyzer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meal-analyzer/pkg/detector"
	"github.com/menta2k/meal-analyzer/pkg/foodnames"
	"github.com/menta2k/meal-analyzer/pkg/fusion"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

type namer struct {
	name string
}

func (n namer) Identify(ctx context.Context, crops []image.Image) ([]types.Identification, error) {
	out := make([]types.Identification, len(crops))
	for i := range out {
		out[i].Name = n.name
	}
	return out, nil
}

// createTestImage creates a plain grey tray
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{64, 64, 64, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestAnalyzer() *MealAnalyzer {
	det := detector.NewStatic([]types.Detection{
		{Box: types.Box{X1: 20, Y1: 20, X2: 120, Y2: 120}, Confidence: 0.9, ClassLabel: "01011001"},
		{Box: types.Box{X1: 200, Y1: 100, X2: 300, Y2: 200}, Confidence: 0.4, ClassLabel: "06012004"},
	})
	names := foodnames.NewIndex(foodnames.Table{
		"01011001": "쌀밥",
		"04011004": "된장찌개",
	})
	return New(det, namer{name: "된장찌개"}, names)
}

func TestAnalyzeBytes(t *testing.T) {
	result, err := newTestAnalyzer().AnalyzeBytes(context.Background(), encodePNG(t, createTestImage(400, 300)))

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Items, 2)
	assert.Equal(t, types.SourceLocal, result.Items[0].Source)
	assert.Equal(t, "쌀밥", result.Items[0].DisplayName)
	assert.Equal(t, types.SourceSecondary, result.Items[1].Source)
	assert.Equal(t, "04011004", result.Items[1].Code)
}

func TestAnalyzeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tray.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, createTestImage(400, 300)), 0o644))

	result, err := newTestAnalyzer().AnalyzeFile(context.Background(), path)

	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
}

func TestAnalyzeReader(t *testing.T) {
	result, err := newTestAnalyzer().AnalyzeReader(context.Background(), bytes.NewReader(encodePNG(t, createTestImage(400, 300))))

	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestAnalyzeRejectsTinyImage(t *testing.T) {
	result, err := newTestAnalyzer().AnalyzeImage(context.Background(), createTestImage(16, 16))

	assert.ErrorIs(t, err, fusion.ErrInvalidFrame)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "too small")
}

func TestAnalyzeBadBytes(t *testing.T) {
	result, err := newTestAnalyzer().AnalyzeBytes(context.Background(), []byte("not an image"))

	assert.Error(t, err)
	assert.False(t, result.Success)
}

func TestAnalyzeMissingFile(t *testing.T) {
	_, err := newTestAnalyzer().AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func TestOverlay(t *testing.T) {
	a := newTestAnalyzer()
	img := createTestImage(400, 300)
	result, err := a.AnalyzeImage(context.Background(), img)
	require.NoError(t, err)

	out := a.Overlay(img, result)

	assert.Equal(t, img.Bounds(), out.Bounds())
	assert.NotEqual(t, color.RGBAModel.Convert(img.At(20, 50)), color.RGBAModel.Convert(out.At(20, 50)))
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
