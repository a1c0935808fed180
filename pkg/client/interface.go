package client

import (
	"context"
)

// VisionClient is a chat-style vision model backend. Images are base64
// encoded JPEG payloads.
type VisionClient interface {
	// SimpleQuery sends one image and returns the model's free-form reply
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	// QueryImages sends several images in one message and asks for a JSON reply
	QueryImages(ctx context.Context, model, prompt string, imagesB64 []string) (string, error)
}
