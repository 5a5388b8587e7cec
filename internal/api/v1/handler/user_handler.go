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

type UserHandler struct {
	userService   service.UserService
	apiKeyService service.APIKeyService
	validate      *validator.Validate
	logger        zerolog.Logger
}

func NewUserHandler(userService service.UserService, apiKeyService service.APIKeyService, v *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, apiKeyService: apiKeyService, validate: v, logger: logger}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/users/me", authMw(http.HandlerFunc(h.getUser)))
	mux.Handle("/users/me/api-key", authMw(http.HandlerFunc(h.handleAPIKey)))
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	p, err := h.userService.Profile(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to fetch user")
		http.Error(w, "failed to fetch user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.UserResponseDTO{
		UserID:             p.User.UserID,
		Email:              p.User.Email,
		SubscriptionStatus: string(p.User.SubscriptionStatus),
		HasAPIKey:          p.HasAPIKey,
		CreatedAt:          p.User.CreatedAt,
	}, h.logger)
}

func (h *UserHandler) handleAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		has, err := h.apiKeyService.HasAPIKey(r.Context(), userID)
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to check api key")
			http.Error(w, "failed to check api key", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, dto.APIKeyStatusResponse{Configured: has}, h.logger)

	case http.MethodPut:
		var req dto.APIKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.validate.Struct(&req); err != nil {
			http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.apiKeyService.StoreAPIKey(r.Context(), userID, req.APIKey); err != nil {
			var upstream *service.UpstreamError
			switch {
			case errors.Is(err, service.ErrInvalidAPIKey):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.As(err, &upstream):
				http.Error(w, upstream.Error(), http.StatusBadGateway)
			default:
				http.Error(w, "failed to store api key", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, dto.APIKeyStatusResponse{Configured: true}, h.logger)

	case http.MethodDelete:
		if err := h.apiKeyService.DeleteAPIKey(r.Context(), userID); err != nil {
			http.Error(w, "failed to delete api key", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
