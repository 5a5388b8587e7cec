package handler

import (
	"errors"
	"io"
	"net/http"

	"flashcards/internal/api/v1/dto"
	"flashcards/internal/service"

	"github.com/rs/zerolog"
)

const maxWebhookBodyBytes = 1 << 20

// WebhookHandler receives Stripe webhook deliveries. It is mounted without
// bearer auth; the signature header authenticates the sender.
type WebhookHandler struct {
	reconciler service.WebhookReconciler
	logger     zerolog.Logger
}

func NewWebhookHandler(reconciler service.WebhookReconciler, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, logger: logger}
}

func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/stripe/webhook", h.HandleStripeWebhook)
}

// HandleStripeWebhook godoc
// @Summary Receive a Stripe webhook event
// @Description Verifies the Stripe-Signature header and applies the event to subscription state.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {string} string "invalid webhook"
// @Failure 500 {string} string "webhook processing failed"
// @Router /stripe/webhook [post]
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}

	result, err := h.reconciler.Reconcile(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWebhookSecretMissing):
			h.logger.Error().Msg("Stripe webhook secret is not configured")
			http.Error(w, "webhook secret not configured", http.StatusInternalServerError)
		case errors.Is(err, service.ErrEmptyPayload):
			http.Error(w, "no body", http.StatusBadRequest)
		case errors.Is(err, service.ErrMissingSignature):
			http.Error(w, "no signature", http.StatusBadRequest)
		case errors.Is(err, service.ErrInvalidSignature):
			h.logger.Warn().Err(err).Msg("Signature verification failed for Stripe webhook")
			http.Error(w, "signature verification failed", http.StatusBadRequest)
		case errors.Is(err, service.ErrMalformedEvent):
			h.logger.Warn().Err(err).Msg("Malformed Stripe webhook event")
			http.Error(w, "malformed event", http.StatusBadRequest)
		default:
			h.logger.Error().Err(err).Msg("Failed to apply Stripe webhook event")
			http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.WebhookResponse{Received: true, Status: string(result.Action)}, h.logger)
}
