package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"flashcards/internal/model"

	"github.com/rs/zerolog"
)

const (
	DefaultFlashcardCount = 10
	MaxFlashcardCount     = 50
	flashcardMaxTokens    = 4000
)

var (
	ErrTopicRequired  = errors.New("topic is required")
	ErrInvalidCount   = fmt.Errorf("count must be between 1 and %d", MaxFlashcardCount)
	ErrNoAPIKey       = errors.New("no API key available")
	ErrFlashcardParse = errors.New("failed to parse generated flashcards")
)

type GenerateFlashcardsInput struct {
	Topic string
	// Count of 0 means DefaultFlashcardCount.
	Count int
	// APIKey overrides the stored and server keys for this call.
	APIKey string
}

type FlashcardService interface {
	Generate(ctx context.Context, userID string, in GenerateFlashcardsInput) ([]model.Flashcard, error)
}

type flashcardService struct {
	llm          LLMClient
	apiKeys      APIKeyService
	serverAPIKey string
	now          func() time.Time
	logger       zerolog.Logger
}

func NewFlashcardService(llm LLMClient, apiKeys APIKeyService, serverAPIKey string, logger zerolog.Logger) FlashcardService {
	lg := logger.With().Str("service", "FlashcardService").Logger()
	return &flashcardService{llm: llm, apiKeys: apiKeys, serverAPIKey: serverAPIKey, now: time.Now, logger: lg}
}

func (s *flashcardService) resolveAPIKey(ctx context.Context, userID, requestKey string) (string, error) {
	if requestKey != "" {
		return requestKey, nil
	}
	if userID != "" && s.apiKeys != nil {
		stored, err := s.apiKeys.GetAPIKey(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("fetch stored api key: %w", err)
		}
		if stored != "" {
			return stored, nil
		}
	}
	if s.serverAPIKey != "" {
		return s.serverAPIKey, nil
	}
	return "", ErrNoAPIKey
}

func flashcardPrompt(topic string, count int) string {
	return fmt.Sprintf(
		"Generate %d high-quality flashcards about %s. "+
			"Format each card as JSON with 'question' and 'answer' fields. "+
			"Return only the JSON array, no additional text.",
		count, topic)
}

func (s *flashcardService) Generate(ctx context.Context, userID string, in GenerateFlashcardsInput) ([]model.Flashcard, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return nil, ErrTopicRequired
	}
	count := in.Count
	if count == 0 {
		count = DefaultFlashcardCount
	}
	if count < 1 || count > MaxFlashcardCount {
		return nil, ErrInvalidCount
	}

	apiKey, err := s.resolveAPIKey(ctx, userID, in.APIKey)
	if err != nil {
		return nil, err
	}

	text, err := s.llm.Complete(ctx, apiKey, flashcardPrompt(topic, count), flashcardMaxTokens)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("topic", topic).Msg("Flashcard generation call failed")
		return nil, err
	}

	cards, err := ExtractFlashcards(text)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Str("topic", topic).Int("response_len", len(text)).Msg("Could not parse generated flashcards")
		return nil, err
	}

	createdAt := s.now().UnixMilli()
	out := make([]model.Flashcard, len(cards))
	for i, c := range cards {
		out[i] = model.Flashcard{
			ID:        fmt.Sprintf("temp-%d", i),
			Question:  c.Question,
			Answer:    c.Answer,
			Topic:     topic,
			CreatedAt: createdAt,
		}
	}
	s.logger.Info().Str("user_id", userID).Str("topic", topic).Int("count", len(out)).Msg("Generated flashcards")
	return out, nil
}

// GeneratedCard is one question/answer pair from the model's output.
type GeneratedCard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ExtractFlashcards parses model output that should contain a JSON array of
// cards. When the text holds a '[' followed later by a ']', only the span from
// the first '[' to the last ']' is parsed; otherwise the whole text is.
func ExtractFlashcards(text string) ([]GeneratedCard, error) {
	raw := text
	first := strings.Index(raw, "[")
	last := strings.LastIndex(raw, "]")
	if first != -1 && last != -1 && last > first {
		raw = raw[first : last+1]
	}
	var cards []GeneratedCard
	if err := json.Unmarshal([]byte(raw), &cards); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFlashcardParse, err)
	}
	if cards == nil {
		cards = []GeneratedCard{}
	}
	return cards, nil
}
