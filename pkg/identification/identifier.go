// Package identification names food crops with a chat-style vision model.
package identification

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/meal-analyzer/pkg/client"
	"github.com/menta2k/meal-analyzer/pkg/processing"
	"github.com/menta2k/meal-analyzer/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for one Korean dish name per crop
const DefaultPrompt = `You are identifying dishes on a Korean school-lunch tray.
Each attached image is a crop of one compartment of the tray.

For every image return the single most likely Korean food name, for example "쌀밥", "배추김치", "된장국".
Use the common menu name only. No descriptions, no portion sizes, no English.
If an image shows no food (empty compartment, tray edge, cutlery), use an empty string.

Return JSON only:
{"items":[{"id":0,"name":"food name"}]}

JSON only. No markdown, no code fences, no comments, no trailing commas.`

const (
	DefaultMaxSide = 512
	DefaultQuality = 70
)

// Identifier sends batches of crops to a vision model
type Identifier struct {
	client    client.VisionClient
	processor *processing.Processor
	model     string
	prompt    string
	maxSide   int
	quality   int
}

// Option configures an Identifier
type Option func(*Identifier)

// WithPrompt replaces DefaultPrompt
func WithPrompt(prompt string) Option {
	return func(id *Identifier) {
		id.prompt = prompt
	}
}

// WithCropEncoding sets the long-side limit and JPEG quality of uploaded crops
func WithCropEncoding(maxSide, quality int) Option {
	return func(id *Identifier) {
		id.maxSide = maxSide
		id.quality = quality
	}
}

// NewIdentifier creates an identifier backed by a vision client
func NewIdentifier(c client.VisionClient, model string, opts ...Option) *Identifier {
	id := &Identifier{
		client:    c,
		processor: processing.NewProcessor(),
		model:     model,
		prompt:    DefaultPrompt,
		maxSide:   DefaultMaxSide,
		quality:   DefaultQuality,
	}
	for _, opt := range opts {
		opt(id)
	}
	return id
}

// Identify names all crops with a single model request. The result always
// has len(crops) entries; crops that cannot be encoded or named are left
// empty and the rest are still sent.
func (id *Identifier) Identify(ctx context.Context, crops []image.Image) ([]types.Identification, error) {
	out := make([]types.Identification, len(crops))
	if len(crops) == 0 {
		return out, nil
	}

	// slots[j] is the crop index of the j-th uploaded image
	imgs := make([]string, 0, len(crops))
	slots := make([]int, 0, len(crops))
	var encodeErr error
	for i, crop := range crops {
		b64, err := id.processor.PrepareImageForModel(crop, "jpg", id.maxSide, id.quality)
		if err != nil {
			if encodeErr == nil {
				encodeErr = fmt.Errorf("encode crop %d: %w", i, err)
			}
			continue
		}
		imgs = append(imgs, b64)
		slots = append(slots, i)
	}
	if len(imgs) == 0 {
		return out, encodeErr
	}

	raw, err := id.client.QueryImages(ctx, id.model, id.batchPrompt(len(imgs)), imgs)
	if err != nil {
		return out, fmt.Errorf("vision query: %w", err)
	}

	names, err := ParseNames(raw, len(imgs))
	if err != nil {
		return out, err
	}
	for j, name := range names {
		out[slots[j]].Name = name
	}
	return out, nil
}

// TestVision tests if the model can actually see an image with a simple prompt
func (id *Identifier) TestVision(ctx context.Context, img image.Image) (string, error) {
	b64, err := id.processor.PrepareImageForModel(img, "jpg", id.maxSide, id.quality)
	if err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	return id.client.SimpleQuery(ctx, id.model, SimpleTestPrompt, b64)
}

func (id *Identifier) batchPrompt(n int) string {
	return fmt.Sprintf("%s\n\nThere are %d images, ids 0 to %d in the order attached.", id.prompt, n, n-1)
}
