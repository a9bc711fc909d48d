package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dvloznov/statement-extractor/internal/logger"
)

// Endpoint describes one model backend. It is plain data so tests can
// point a client at a fake server.
type Endpoint struct {
	BaseURL     string        `yaml:"base_url"`
	ModelName   string        `yaml:"model_name"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// OllamaClient calls an Ollama-style chat endpoint. It also understands
// OpenAI-compatible response envelopes (see envelope.go).
type OllamaClient struct {
	endpoint Endpoint
	http     *http.Client
}

// NewOllamaClient builds a client for the given endpoint. A zero timeout
// defaults to 60 seconds.
func NewOllamaClient(endpoint Endpoint) *OllamaClient {
	if endpoint.Timeout == 0 {
		endpoint.Timeout = 60 * time.Second
	}
	return &OllamaClient{
		endpoint: endpoint,
		http:     &http.Client{},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Options  chatOptions   `json:"options"`
	Stream   bool          `json:"stream"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// Call sends a single-turn prompt and returns the assistant text. All
// transport failures come back as *TransportError; a deadline hit sets
// Timeout so the caller can report it distinctly.
func (c *OllamaClient) Call(ctx context.Context, prompt string) (string, error) {
	url := c.endpoint.BaseURL + "/api/chat"

	payload, err := json.Marshal(chatRequest{
		Model:    c.endpoint.ModelName,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Options: chatOptions{
			Temperature: c.endpoint.Temperature,
			NumPredict:  c.endpoint.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.endpoint.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{
			Endpoint: url,
			Timeout:  errors.Is(err, context.DeadlineExceeded) || isTimeoutErr(err),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Endpoint: url, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{
			Endpoint: url,
			Err:      fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(body)),
		}
	}

	content, err := decodeChatResponse(body)
	if err != nil {
		return "", &TransportError{Endpoint: url, Err: err}
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("model", c.endpoint.ModelName).
		Dur("latency", time.Since(start)).
		Int("response_len", len(content)).
		Msg("model response received")

	return content, nil
}

func isTimeoutErr(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
