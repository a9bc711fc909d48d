package model

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiClient is a Caller backed by the Gemini API. It is used when no
// local model endpoint is configured.
type GeminiClient struct {
	modelName string
	timeout   time.Duration
	client    *genai.Client
}

// NewGeminiClient creates a Gemini-backed caller. Credentials come from
// the ambient environment (GOOGLE_API_KEY or application default
// credentials).
func NewGeminiClient(ctx context.Context, modelName string, timeout time.Duration) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &GeminiClient{modelName: modelName, timeout: timeout, client: client}, nil
}

// Call implements Caller.
func (c *GeminiClient) Call(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, nil)
	if err != nil {
		return "", &TransportError{
			Endpoint: "gemini/" + c.modelName,
			Timeout:  ctx.Err() != nil,
			Err:      err,
		}
	}

	text := resp.Text()
	if text == "" {
		return "", &TransportError{
			Endpoint: "gemini/" + c.modelName,
			Err:      fmt.Errorf("empty response from model"),
		}
	}
	return text, nil
}
