package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChatResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "ollama native",
			body: `{"message": {"role": "assistant", "content": "hello"}}`,
			want: "hello",
		},
		{
			name: "openai compatible",
			body: `{"choices": [{"message": {"role": "assistant", "content": "hi there"}}]}`,
			want: "hi there",
		},
		{
			name: "generate endpoint",
			body: `{"response": "  generated  "}`,
			want: "generated",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeChatResponse([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeChatResponseErrors(t *testing.T) {
	_, err := decodeChatResponse([]byte(`{"error": "model not found"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")

	_, err = decodeChatResponse([]byte(`{"something": "else"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response shape")

	_, err = decodeChatResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestOllamaClientCall(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "response text"},
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(Endpoint{
		BaseURL:     srv.URL,
		ModelName:   "nemotron",
		Temperature: 0.1,
		MaxTokens:   256,
	})

	got, err := client.Call(context.Background(), "extract these")
	require.NoError(t, err)
	assert.Equal(t, "response text", got)

	assert.Equal(t, "nemotron", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
	assert.Equal(t, "extract these", gotReq.Messages[0].Content)
	assert.False(t, gotReq.Stream)
}

func TestOllamaClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewOllamaClient(Endpoint{BaseURL: srv.URL, ModelName: "m"})
	_, err := client.Call(context.Background(), "p")
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.False(t, terr.Timeout)
	assert.Contains(t, terr.Error(), "502")
}

func TestOllamaClientTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	client := NewOllamaClient(Endpoint{
		BaseURL:   srv.URL,
		ModelName: "m",
		Timeout:   50 * time.Millisecond,
	})

	_, err := client.Call(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestCallerFunc(t *testing.T) {
	f := CallerFunc(func(_ context.Context, prompt string) (string, error) {
		return prompt + "!", nil
	})
	got, err := f.Call(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi!", got)
}
