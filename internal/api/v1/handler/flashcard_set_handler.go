package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"flashcards/internal/api/v1/dto"
	"flashcards/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type FlashcardSetHandler struct {
	setSvc   service.FlashcardSetService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewFlashcardSetHandler(setSvc service.FlashcardSetService, v *validator.Validate, logger zerolog.Logger) *FlashcardSetHandler {
	return &FlashcardSetHandler{setSvc: setSvc, validate: v, logger: logger}
}

func (h *FlashcardSetHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/flashcard-sets", authMw(http.HandlerFunc(h.handleSets)))
	mux.Handle("/flashcard-sets/", authMw(http.HandlerFunc(h.handleSet)))
}

func (h *FlashcardSetHandler) handleSets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listSets(w, r)
	case http.MethodPost:
		h.createSet(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *FlashcardSetHandler) handleSet(w http.ResponseWriter, r *http.Request) {
	setID := strings.TrimPrefix(r.URL.Path, "/flashcard-sets/")
	if setID == "" || strings.Contains(setID, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.getSet(w, r, setID)
	case http.MethodDelete:
		h.deleteSet(w, r, setID)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// createSet godoc
// @Summary Save a flashcard set
// @Tags flashcard-sets
// @Accept json
// @Produce json
// @Param set body dto.CreateFlashcardSetRequest true "Set to save"
// @Success 201 {object} dto.FlashcardSetResponseDTO
// @Failure 400 {string} string "Validation failed"
// @Router /flashcard-sets [post]
func (h *FlashcardSetHandler) createSet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.CreateFlashcardSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	set, err := h.setSvc.Create(r.Context(), userID, service.CreateFlashcardSetInput{
		Title:      req.Title,
		Topic:      req.Topic,
		Flashcards: dto.FlashcardsToModel(req.Flashcards),
	})
	if err != nil {
		if errors.Is(err, service.ErrFlashcardSetTitle) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to save flashcard set", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FlashcardSetFromModel(set), h.logger)
}

// listSets godoc
// @Summary List saved flashcard sets, newest first
// @Tags flashcard-sets
// @Produce json
// @Success 200 {array} dto.FlashcardSetSummaryDTO
// @Router /flashcard-sets [get]
func (h *FlashcardSetHandler) listSets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sets, err := h.setSvc.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list flashcard sets")
		http.Error(w, "failed to list flashcard sets", http.StatusInternalServerError)
		return
	}
	resp := make([]dto.FlashcardSetSummaryDTO, len(sets))
	for i, s := range sets {
		resp[i] = dto.FlashcardSetSummaryDTO{
			ID:        s.ID,
			Title:     s.Title,
			Topic:     s.Topic,
			CardCount: len(s.Flashcards),
			CreatedAt: s.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

func (h *FlashcardSetHandler) getSet(w http.ResponseWriter, r *http.Request, setID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	set, err := h.setSvc.Get(r.Context(), userID, setID)
	if err != nil {
		if errors.Is(err, service.ErrFlashcardSetNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("set_id", setID).Msg("failed to fetch flashcard set")
		http.Error(w, "failed to fetch flashcard set", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.FlashcardSetFromModel(set), h.logger)
}

func (h *FlashcardSetHandler) deleteSet(w http.ResponseWriter, r *http.Request, setID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.setSvc.Delete(r.Context(), userID, setID); err != nil {
		if errors.Is(err, service.ErrFlashcardSetNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete flashcard set", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
