package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicClient_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "user-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, defaultAnthropicModel, req.Model)
		assert.Equal(t, 4000, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "make cards", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","content":[{"type":"text","text":"Sure! [{\"question\":\"Q\",\"answer\":\"A\"}]"},{"type":"text","text":"ignored"}]}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{BaseURL: server.URL + "/v1/"})
	text, err := client.Complete(context.Background(), "user-key", "make cards", 4000)
	require.NoError(t, err)
	assert.Equal(t, `Sure! [{"question":"Q","answer":"A"}]`, text)
}

func TestAnthropicClient_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), "k", "p", 10)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	assert.Equal(t, "slow down", upstream.Message)
}

func TestAnthropicClient_ValidateAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
			return
		}
		var req anthropicRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, 1, req.MaxTokens)
		_, _ = w.Write([]byte(`{"id":"msg_1","content":[{"type":"text","text":"ok"}]}`))
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicConfig{BaseURL: server.URL})
	assert.NoError(t, client.ValidateAPIKey(context.Background(), "good"))
	assert.ErrorIs(t, client.ValidateAPIKey(context.Background(), "bad"), ErrInvalidAPIKey)
	assert.ErrorIs(t, client.ValidateAPIKey(context.Background(), ""), ErrInvalidAPIKey)
}
