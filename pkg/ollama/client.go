package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultTemperature keeps food names stable between runs
const DefaultTemperature = 0.2

// jsonFormat asks Ollama to constrain the reply to valid JSON
var jsonFormat = json.RawMessage(`"json"`)

// Client wraps the Ollama API client
type Client struct {
	client      *api.Client
	temperature float64
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL string) (*Client, error) {
	// Parse the provided URL
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q has no scheme or host", ollamaURL)
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	// Create client with the specified URL, ignoring environment
	client := api.NewClient(baseURL, http.DefaultClient)

	return &Client{client: client, temperature: DefaultTemperature}, nil
}

// SetTemperature overrides the sampling temperature
func (c *Client) SetTemperature(t float64) {
	c.temperature = t
}

// SimpleQuery performs a simple query with an image without expecting JSON
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.chat(ctx, model, prompt, []string{imgB64}, nil)
}

// QueryImages sends all images in a single user message and requests JSON output
func (c *Client) QueryImages(ctx context.Context, model, prompt string, imagesB64 []string) (string, error) {
	if len(imagesB64) == 0 {
		return "", fmt.Errorf("no images to send")
	}
	return c.chat(ctx, model, prompt, imagesB64, jsonFormat)
}

func (c *Client) chat(ctx context.Context, model, prompt string, imagesB64 []string, format json.RawMessage) (string, error) {
	// Add timeout if context doesn't have one (local vision models are slow on CPU)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	images := make([]api.ImageData, 0, len(imagesB64))
	for i, b64 := range imagesB64 {
		imgBytes, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 image %d: %v", i, err)
		}
		images = append(images, api.ImageData(imgBytes))
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  images,
			},
		},
		Stream:  &streamFalse,
		Format:  format,
		Options: map[string]any{"temperature": c.temperature},
	}

	var responseContent string
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %v", err)
	}

	if responseContent == "" {
		return "", fmt.Errorf("empty response from ollama")
	}

	return responseContent, nil
}
