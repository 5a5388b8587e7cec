package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	defaultAnthropicModel   = "claude-3-haiku-20240307"
	anthropicVersion        = "2023-06-01"
	anthropicMessagesPath   = "/messages"
)

var ErrInvalidAPIKey = errors.New("invalid API key")

// UpstreamError is a non-200 reply from the LLM provider. StatusCode is the
// provider's HTTP status.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("LLM provider error (status %d)", e.StatusCode)
}

// LLMClient sends a single prompt and returns the text of the first content
// block. apiKey is per call because it may belong to the requesting user.
type LLMClient interface {
	Complete(ctx context.Context, apiKey, prompt string, maxTokens int) (string, error)
	// ValidateAPIKey makes a 1-token call and returns ErrInvalidAPIKey on 401.
	ValidateAPIKey(ctx context.Context, apiKey string) error
}

type AnthropicConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type anthropicClient struct {
	client  *http.Client
	baseURL string
	model   string
}

func NewAnthropicClient(cfg AnthropicConfig) LLMClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &anthropicClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		model:   model,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID      string                  `json:"id"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *anthropicClient) call(ctx context.Context, apiKey, prompt string, maxTokens int) (*anthropicResponse, error) {
	bodyJSON, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+anthropicMessagesPath, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read LLM response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		upstream := &UpstreamError{StatusCode: resp.StatusCode}
		var errorResp anthropicErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil {
			upstream.Message = errorResp.Error.Message
		}
		return nil, upstream
	}

	var out anthropicResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	return &out, nil
}

func (c *anthropicClient) Complete(ctx context.Context, apiKey, prompt string, maxTokens int) (string, error) {
	resp, err := c.call(ctx, apiKey, prompt, maxTokens)
	if err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", nil
	}
	first := resp.Content[0]
	if first.Type == "text" {
		return first.Text, nil
	}
	// non-text blocks are handed to extraction as their JSON form
	raw, err := json.Marshal(first)
	if err != nil {
		return "", fmt.Errorf("failed to encode content block: %w", err)
	}
	return string(raw), nil
}

func (c *anthropicClient) ValidateAPIKey(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("%w: API key cannot be empty", ErrInvalidAPIKey)
	}
	_, err := c.call(ctx, apiKey, "test", 1)
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode == http.StatusUnauthorized {
		if upstream.Message != "" {
			return fmt.Errorf("%w: %s", ErrInvalidAPIKey, upstream.Message)
		}
		return fmt.Errorf("%w: unauthorized", ErrInvalidAPIKey)
	}
	if err != nil {
		return fmt.Errorf("API key validation failed: %w", err)
	}
	return nil
}
