package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"flashcards/internal/api/v1/dto"
	"flashcards/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const flashcardParseMessage = "Failed. Try generating a smaller set or reword your topic."

type FlashcardHandler struct {
	flashcardSvc service.FlashcardService
	validate     *validator.Validate
	logger       zerolog.Logger
}

func NewFlashcardHandler(flashcardSvc service.FlashcardService, v *validator.Validate, logger zerolog.Logger) *FlashcardHandler {
	return &FlashcardHandler{flashcardSvc: flashcardSvc, validate: v, logger: logger}
}

func (h *FlashcardHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/flashcards/generate", authMw(http.HandlerFunc(h.Generate)))
}

// Generate godoc
// @Summary Generate flashcards about a topic
// @Description Makes one LLM call and returns the parsed cards. They are not saved.
// @Tags flashcards
// @Accept json
// @Produce json
// @Param request body dto.GenerateFlashcardsRequest true "Generation request"
// @Success 200 {object} dto.GenerateFlashcardsResponse
// @Failure 400 {string} string "Topic is required"
// @Failure 422 {string} string "Failed. Try generating a smaller set or reword your topic."
// @Failure 500 {string} string "No API key available"
// @Failure 502 {string} string "LLM provider error"
// @Router /flashcards/generate [post]
func (h *FlashcardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.GenerateFlashcardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	cards, err := h.flashcardSvc.Generate(r.Context(), userID, service.GenerateFlashcardsInput{
		Topic:  req.Topic,
		Count:  req.Count,
		APIKey: req.APIKey,
	})
	if err != nil {
		var upstream *service.UpstreamError
		switch {
		case errors.Is(err, service.ErrTopicRequired):
			http.Error(w, "Topic is required", http.StatusBadRequest)
		case errors.Is(err, service.ErrInvalidCount):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, service.ErrNoAPIKey):
			http.Error(w, "No API key available", http.StatusInternalServerError)
		case errors.Is(err, service.ErrFlashcardParse):
			http.Error(w, flashcardParseMessage, http.StatusUnprocessableEntity)
		case errors.As(err, &upstream):
			status := upstream.StatusCode
			if status >= http.StatusInternalServerError || status < http.StatusBadRequest {
				status = http.StatusBadGateway
			}
			http.Error(w, upstream.Error(), status)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to generate flashcards")
			http.Error(w, "Failed to generate flashcards", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.GenerateFlashcardsResponse{Flashcards: dto.FlashcardsFromModel(cards)}, h.logger)
}
