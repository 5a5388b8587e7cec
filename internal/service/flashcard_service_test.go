package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	response    string
	err         error
	validateErr error

	calls      int
	lastKey    string
	lastPrompt string
	lastMax    int
	validated  []string
}

func (f *fakeLLM) Complete(_ context.Context, apiKey, prompt string, maxTokens int) (string, error) {
	f.calls++
	f.lastKey = apiKey
	f.lastPrompt = prompt
	f.lastMax = maxTokens
	return f.response, f.err
}

func (f *fakeLLM) ValidateAPIKey(_ context.Context, apiKey string) error {
	f.validated = append(f.validated, apiKey)
	return f.validateErr
}

type memoryKeyStore struct {
	keys   map[string]string
	getErr error
}

func newMemoryKeyStore() *memoryKeyStore { return &memoryKeyStore{keys: map[string]string{}} }

func (m *memoryKeyStore) GetAPIKey(_ context.Context, userID string) (string, error) {
	return m.keys[userID], m.getErr
}

func (m *memoryKeyStore) SetAPIKey(_ context.Context, userID, apiKey string) error {
	m.keys[userID] = apiKey
	return nil
}

func (m *memoryKeyStore) DeleteAPIKey(_ context.Context, userID string) error {
	delete(m.keys, userID)
	return nil
}

func newTestFlashcardService(llm LLMClient, keys *memoryKeyStore, serverKey string) *flashcardService {
	svc := NewFlashcardService(llm, NewAPIKeyService(keys, llm, zerolog.Nop()), serverKey, zerolog.Nop()).(*flashcardService)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}

func TestExtractFlashcards(t *testing.T) {
	t.Run("leading prose", func(t *testing.T) {
		cards, err := ExtractFlashcards(`Sure! [{"question":"Q","answer":"A"}]`)
		require.NoError(t, err)
		assert.Equal(t, []GeneratedCard{{Question: "Q", Answer: "A"}}, cards)
	})

	t.Run("trailing prose and nested brackets", func(t *testing.T) {
		cards, err := ExtractFlashcards("Here:\n[{\"question\":\"What is [x]?\",\"answer\":\"A\"},{\"question\":\"Q2\",\"answer\":\"B\"}]\nEnjoy.")
		require.NoError(t, err)
		require.Len(t, cards, 2)
		assert.Equal(t, "What is [x]?", cards[0].Question)
	})

	t.Run("bare array", func(t *testing.T) {
		cards, err := ExtractFlashcards(`[]`)
		require.NoError(t, err)
		assert.Empty(t, cards)
	})

	bad := []string{
		`Sure! [{"question":"Q","answer":"A"}`,
		`{"question":"Q","answer":"A"}]`,
		`] nothing [`,
		``,
		`no json at all`,
	}
	for _, text := range bad {
		_, err := ExtractFlashcards(text)
		assert.ErrorIs(t, err, ErrFlashcardParse, text)
	}
}

func TestGenerate_Success(t *testing.T) {
	llm := &fakeLLM{response: `Sure! [{"question":"Q","answer":"A"},{"question":"Q2","answer":"A2"}]`}
	svc := newTestFlashcardService(llm, newMemoryKeyStore(), "server-key")

	cards, err := svc.Generate(context.Background(), "u1", GenerateFlashcardsInput{Topic: "  Go  ", Count: 2})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "temp-0", cards[0].ID)
	assert.Equal(t, "temp-1", cards[1].ID)
	assert.Equal(t, "Q", cards[0].Question)
	assert.Equal(t, "A", cards[0].Answer)
	assert.Equal(t, "Go", cards[0].Topic)
	assert.Equal(t, int64(1700000000000), cards[0].CreatedAt)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, flashcardMaxTokens, llm.lastMax)
	assert.Contains(t, llm.lastPrompt, "Generate 2 high-quality flashcards about Go")
}

func TestGenerate_DefaultCount(t *testing.T) {
	llm := &fakeLLM{response: `[]`}
	svc := newTestFlashcardService(llm, newMemoryKeyStore(), "server-key")

	_, err := svc.Generate(context.Background(), "u1", GenerateFlashcardsInput{Topic: "Go"})
	require.NoError(t, err)
	assert.Contains(t, llm.lastPrompt, "Generate 10 ")
}

func TestGenerate_ValidationBeforeCall(t *testing.T) {
	llm := &fakeLLM{response: `[]`}
	svc := newTestFlashcardService(llm, newMemoryKeyStore(), "server-key")

	_, err := svc.Generate(context.Background(), "u1", GenerateFlashcardsInput{Topic: "   "})
	assert.ErrorIs(t, err, ErrTopicRequired)

	_, err = svc.Generate(context.Background(), "u1", GenerateFlashcardsInput{Topic: "Go", Count: MaxFlashcardCount + 1})
	assert.ErrorIs(t, err, ErrInvalidCount)

	_, err = svc.Generate(context.Background(), "u1", GenerateFlashcardsInput{Topic: "Go", Count: -1})
	assert.ErrorIs(t, err, ErrInvalidCount)

	assert.Zero(t, llm.calls)
}

func TestGenerate_APIKeyPrecedence(t *testing.T) {
	keys := newMemoryKeyStore()
	keys.keys["u1"] = "stored-key"

	tests := []struct {
		name       string
		userID     string
		requestKey string
		serverKey  string
		want       string
	}{
		{"request key wins", "u1", "request-key", "server-key", "request-key"},
		{"stored key next", "u1", "", "server-key", "stored-key"},
		{"server key last", "u2", "", "server-key", "server-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{response: `[]`}
			svc := newTestFlashcardService(llm, keys, tt.serverKey)
			_, err := svc.Generate(context.Background(), tt.userID, GenerateFlashcardsInput{Topic: "Go", APIKey: tt.requestKey})
			require.NoError(t, err)
			assert.Equal(t, tt.want, llm.lastKey)
		})
	}
}

func TestGenerate_NoAPIKey(t *testing.T) {
	llm := &fakeLLM{response: `[]`}
	svc := newTestFlashcardService(llm, newMemoryKeyStore(), "")

	_, err := svc.Generate(context.Background(), "u1", GenerateFlashcardsInput{Topic: "Go"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Zero(t, llm.calls)
}

func TestGenerate_ParseFailure(t *testing.T) {
	llm := &fakeLLM{response: `Sure! [{"question":"Q","answer":"A"}`}
	svc := newTestFlashcardService(llm, newMemoryKeyStore(), "server-key")

	cards, err := svc.Generate(context.Background(), "u1", GenerateFlashcardsInput{Topic: "Go"})
	assert.ErrorIs(t, err, ErrFlashcardParse)
	assert.Nil(t, cards)
}

func TestGenerate_UpstreamErrorPassesThrough(t *testing.T) {
	upstream := &UpstreamError{StatusCode: 429, Message: "rate limited"}
	llm := &fakeLLM{err: upstream}
	svc := newTestFlashcardService(llm, newMemoryKeyStore(), "server-key")

	_, err := svc.Generate(context.Background(), "u1", GenerateFlashcardsInput{Topic: "Go"})
	var got *UpstreamError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, 429, got.StatusCode)
}

func TestAPIKeyService(t *testing.T) {
	keys := newMemoryKeyStore()
	llm := &fakeLLM{}
	svc := NewAPIKeyService(keys, llm, zerolog.Nop())
	ctx := context.Background()

	has, err := svc.HasAPIKey(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, svc.StoreAPIKey(ctx, "u1", " sk-ant-1 "))
	assert.Equal(t, []string{"sk-ant-1"}, llm.validated)
	has, err = svc.HasAPIKey(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, has)

	llm.validateErr = ErrInvalidAPIKey
	assert.ErrorIs(t, svc.StoreAPIKey(ctx, "u1", "bad"), ErrInvalidAPIKey)
	key, err := svc.GetAPIKey(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-1", key)

	require.NoError(t, svc.DeleteAPIKey(ctx, "u1"))
	has, err = svc.HasAPIKey(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, has)
}
