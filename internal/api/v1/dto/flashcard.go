package dto

import "flashcards/internal/model"

// GenerateFlashcardsRequest is validated for shape here; topic presence and
// the count default are enforced by the service.
type GenerateFlashcardsRequest struct {
	Topic  string `json:"topic" validate:"max=500"`
	Count  int    `json:"count" validate:"omitempty,min=1,max=50"`
	APIKey string `json:"api_key" validate:"max=512"`
}

type FlashcardDTO struct {
	ID        string `json:"id"`
	Question  string `json:"question" validate:"required"`
	Answer    string `json:"answer" validate:"required"`
	Topic     string `json:"topic"`
	CreatedAt int64  `json:"created_at"`
}

type GenerateFlashcardsResponse struct {
	Flashcards []FlashcardDTO `json:"flashcards"`
}

type CreateFlashcardSetRequest struct {
	Title      string         `json:"title" validate:"required,max=200"`
	Topic      string         `json:"topic" validate:"max=500"`
	Flashcards []FlashcardDTO `json:"flashcards" validate:"required,max=200,dive"`
}

type FlashcardSetResponseDTO struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Topic      string         `json:"topic"`
	Flashcards []FlashcardDTO `json:"flashcards"`
	CreatedAt  int64          `json:"created_at"`
}

// FlashcardSetSummaryDTO is a list entry without the cards.
type FlashcardSetSummaryDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Topic     string `json:"topic"`
	CardCount int    `json:"card_count"`
	CreatedAt int64  `json:"created_at"`
}

func FlashcardsFromModel(cards []model.Flashcard) []FlashcardDTO {
	out := make([]FlashcardDTO, len(cards))
	for i, c := range cards {
		out[i] = FlashcardDTO(c)
	}
	return out
}

func FlashcardsToModel(cards []FlashcardDTO) []model.Flashcard {
	out := make([]model.Flashcard, len(cards))
	for i, c := range cards {
		out[i] = model.Flashcard(c)
	}
	return out
}

func FlashcardSetFromModel(s *model.FlashcardSet) FlashcardSetResponseDTO {
	return FlashcardSetResponseDTO{
		ID:         s.ID,
		Title:      s.Title,
		Topic:      s.Topic,
		Flashcards: FlashcardsFromModel(s.Flashcards),
		CreatedAt:  s.CreatedAt,
	}
}
