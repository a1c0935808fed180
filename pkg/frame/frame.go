// Package frame wraps the decoded tray photo handed to the fusion engine.
package frame

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/meal-analyzer/pkg/geometry"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

// Frame is the read-only in-memory image one analysis call works on
type Frame struct {
	img    image.Image
	Width  int
	Height int
}

// Info contains basic frame metadata
type Info struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
}

// New wraps a decoded image
func New(img image.Image) (*Frame, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}
	return &Frame{img: img, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// Image returns the underlying image
func (f *Frame) Image() image.Image {
	return f.img
}

// Bounds returns the full-frame box
func (f *Frame) Bounds() types.Box {
	return types.Box{X1: 0, Y1: 0, X2: f.Width, Y2: f.Height}
}

// Info returns basic information about the frame
func (f *Frame) Info() Info {
	return Info{
		Width:       f.Width,
		Height:      f.Height,
		AspectRatio: float64(f.Width) / float64(f.Height),
		Area:        f.Width * f.Height,
	}
}

// Validate checks that the frame meets a minimum side length
func (f *Frame) Validate(minSize int) error {
	if f.Width < minSize || f.Height < minSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)", f.Width, f.Height, minSize)
	}
	return nil
}

// Crop copies the region under box (frame coordinates, clipped) into a new image
func (f *Frame) Crop(box types.Box) (image.Image, error) {
	box = geometry.Clip(box, f.Width, f.Height)
	if box.Width() == 0 || box.Height() == 0 {
		return nil, fmt.Errorf("empty crop rectangle %s", box)
	}
	origin := f.img.Bounds().Min
	return imaging.Crop(f.img, box.Rect().Add(origin)), nil
}
