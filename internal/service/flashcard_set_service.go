package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"flashcards/internal/model"
	"flashcards/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrFlashcardSetNotFound = errors.New("flashcard set not found")
	ErrFlashcardSetTitle    = errors.New("title is required")
)

type CreateFlashcardSetInput struct {
	Title      string
	Topic      string
	Flashcards []model.Flashcard
}

type FlashcardSetService interface {
	Create(ctx context.Context, userID string, in CreateFlashcardSetInput) (*model.FlashcardSet, error)
	List(ctx context.Context, userID string) ([]model.FlashcardSet, error)
	Get(ctx context.Context, userID, setID string) (*model.FlashcardSet, error)
	Delete(ctx context.Context, userID, setID string) error
}

type flashcardSetService struct {
	repo   repository.FlashcardSetRepository
	now    func() time.Time
	logger zerolog.Logger
}

func NewFlashcardSetService(repo repository.FlashcardSetRepository, logger zerolog.Logger) FlashcardSetService {
	lg := logger.With().Str("service", "FlashcardSetService").Logger()
	return &flashcardSetService{repo: repo, now: time.Now, logger: lg}
}

func (s *flashcardSetService) Create(ctx context.Context, userID string, in CreateFlashcardSetInput) (*model.FlashcardSet, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrFlashcardSetTitle
	}
	cards := in.Flashcards
	if cards == nil {
		cards = []model.Flashcard{}
	}
	set := &model.FlashcardSet{
		ID:         uuid.NewString(),
		UserID:     userID,
		Title:      title,
		Topic:      strings.TrimSpace(in.Topic),
		Flashcards: cards,
		CreatedAt:  s.now().UnixMilli(),
	}
	if err := s.repo.CreateSet(ctx, set); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to save flashcard set")
		return nil, err
	}
	return set, nil
}

func (s *flashcardSetService) List(ctx context.Context, userID string) ([]model.FlashcardSet, error) {
	return s.repo.ListSets(ctx, userID)
}

func (s *flashcardSetService) Get(ctx context.Context, userID, setID string) (*model.FlashcardSet, error) {
	set, err := s.repo.GetSet(ctx, userID, setID)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, ErrFlashcardSetNotFound
	}
	return set, nil
}

func (s *flashcardSetService) Delete(ctx context.Context, userID, setID string) error {
	deleted, err := s.repo.DeleteSet(ctx, userID, setID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("set_id", setID).Msg("Failed to delete flashcard set")
		return err
	}
	if !deleted {
		return ErrFlashcardSetNotFound
	}
	return nil
}
