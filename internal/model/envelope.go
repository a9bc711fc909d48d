package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Chat backends disagree on the response envelope: Ollama's native API
// returns {"message": {"content": ...}} while OpenAI-compatible endpoints
// return {"choices": [{"message": {"content": ...}}]}. The shape is
// resolved once here, at the transport boundary, instead of being probed
// at every call site.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatEnvelope struct {
	// Ollama native shape.
	Message *chatMessage `json:"message,omitempty"`
	// OpenAI-compatible shape.
	Choices []chatChoice `json:"choices,omitempty"`
	// Ollama /api/generate shape.
	Response string `json:"response,omitempty"`
	// Error variant reported by either backend.
	ErrorMessage string `json:"error,omitempty"`
}

// decodeChatResponse extracts the assistant text from a raw response body,
// or fails when the body matches no known envelope.
func decodeChatResponse(body []byte) (string, error) {
	var env chatEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}

	switch {
	case env.ErrorMessage != "":
		return "", fmt.Errorf("model backend error: %s", env.ErrorMessage)
	case env.Message != nil && env.Message.Content != "":
		return strings.TrimSpace(env.Message.Content), nil
	case len(env.Choices) > 0 && env.Choices[0].Message.Content != "":
		return strings.TrimSpace(env.Choices[0].Message.Content), nil
	case env.Response != "":
		return strings.TrimSpace(env.Response), nil
	default:
		return "", fmt.Errorf("unexpected response shape: %s", truncateBody(body))
	}
}

func truncateBody(body []byte) string {
	const max = 500
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
