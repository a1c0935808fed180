package ortenv

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Normalization maps 0..1 pixel values per RGB channel as (v - Mean) / Std
type Normalization struct {
	Mean [3]float32
	Std  [3]float32
}

var (
	// UnitScale keeps pixels in 0..1
	UnitScale = Normalization{Std: [3]float32{1, 1, 1}}

	// ImageNet is the torchvision mean/std normalization
	ImageNet = Normalization{
		Mean: [3]float32{0.485, 0.456, 0.406},
		Std:  [3]float32{0.229, 0.224, 0.225},
	}
)

// FillCHW resizes img to size x size and writes it planar RGB into dst
func FillCHW(img image.Image, dst []float32, size int, norm Normalization) error {
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	img = resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := img.Bounds()

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			red[i] = (float32(r>>8)/255.0 - norm.Mean[0]) / norm.Std[0]
			green[i] = (float32(g>>8)/255.0 - norm.Mean[1]) / norm.Std[1]
			blue[i] = (float32(bl>>8)/255.0 - norm.Mean[2]) / norm.Std[2]
			i++
		}
	}
	return nil
}
