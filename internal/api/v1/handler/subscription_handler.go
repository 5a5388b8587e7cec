package handler

import (
	"errors"
	"net/http"

	"flashcards/internal/api/v1/dto"
	"flashcards/internal/middleware"
	"flashcards/internal/model"
	"flashcards/internal/repository"
	"flashcards/internal/service"

	"github.com/rs/zerolog"
)

// SubscriptionHandler handles subscription-related endpoints.
type SubscriptionHandler struct {
	stripeSvc service.StripeService
	userSvc   service.UserService
	logger    zerolog.Logger
}

func NewSubscriptionHandler(stripeSvc service.StripeService, userSvc service.UserService, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{stripeSvc: stripeSvc, userSvc: userSvc, logger: logger}
}

// RegisterRoutes registers the subscription endpoints.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/subscriptions/checkout", authMiddleware(http.HandlerFunc(h.Checkout)))
	mux.Handle("/subscriptions/cancel", authMiddleware(http.HandlerFunc(h.Cancel)))
	mux.Handle("/subscriptions/reactivate", authMiddleware(http.HandlerFunc(h.Reactivate)))
	mux.Handle("/subscriptions/me", authMiddleware(http.HandlerFunc(h.Me)))
	mux.Handle("/subscriptions/portal", authMiddleware(http.HandlerFunc(h.Portal)))
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (h *SubscriptionHandler) billingError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrNoStripeCustomer):
		http.Error(w, "no billing account for user", http.StatusConflict)
	case errors.Is(err, repository.ErrStripeCustomerTaken):
		http.Error(w, "billing account is linked to another user", http.StatusConflict)
	case errors.Is(err, service.ErrNoActiveSubscription):
		http.Error(w, "no active subscription found", http.StatusNotFound)
	case errors.Is(err, service.ErrNoPendingCancellation):
		http.Error(w, "no subscription pending cancellation", http.StatusNotFound)
	default:
		h.logger.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

// Checkout godoc
// @Summary Initiate a Stripe Checkout session
// @Description Creates the caller's Stripe customer if needed and returns a subscription Checkout session.
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.CheckoutResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to create checkout session"
// @Router /subscriptions/checkout [post]
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	sess, err := h.stripeSvc.CreateCheckoutSession(r.Context(), userID, middleware.Email(r.Context()))
	if err != nil {
		h.billingError(w, err, "failed to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, dto.CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, h.logger)
}

// Cancel godoc
// @Summary Cancel the caller's subscription at period end
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.SubscriptionStatusResponse
// @Failure 404 {string} string "no active subscription found"
// @Failure 409 {string} string "no billing account for user"
// @Router /subscriptions/cancel [post]
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.stripeSvc.CancelSubscription(r.Context(), userID); err != nil {
		h.billingError(w, err, "failed to cancel subscription")
		return
	}
	writeJSON(w, http.StatusOK, dto.SubscriptionStatusResponse{SubscriptionStatus: string(model.SubscriptionStatusPendingCancellation)}, h.logger)
}

// Reactivate godoc
// @Summary Undo a scheduled cancellation
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.SubscriptionStatusResponse
// @Failure 404 {string} string "no subscription pending cancellation"
// @Router /subscriptions/reactivate [post]
func (h *SubscriptionHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.stripeSvc.ReactivateSubscription(r.Context(), userID); err != nil {
		h.billingError(w, err, "failed to reactivate subscription")
		return
	}
	writeJSON(w, http.StatusOK, dto.SubscriptionStatusResponse{SubscriptionStatus: string(model.SubscriptionStatusSubscribed)}, h.logger)
}

// Me godoc
// @Summary Get the caller's subscription record
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.SubscriptionResponseDTO
// @Router /subscriptions/me [get]
func (h *SubscriptionHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	u, err := h.userSvc.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to fetch subscription")
		http.Error(w, "failed to fetch subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.SubscriptionResponseDTO{
		UserID:             u.UserID,
		SubscriptionStatus: string(u.SubscriptionStatus),
		IsSubscribed:       u.SubscriptionStatus != model.SubscriptionStatusUnsubscribed,
		HasStripeCustomer:  u.CustomerID() != "",
	}, h.logger)
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Tags subscriptions
// @Produce json
// @Success 200 {object} dto.PortalResponse
// @Failure 409 {string} string "no billing account for user"
// @Router /subscriptions/portal [get]
func (h *SubscriptionHandler) Portal(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	url, err := h.stripeSvc.CreatePortalSession(r.Context(), userID)
	if err != nil {
		h.billingError(w, err, "failed to create portal session")
		return
	}
	writeJSON(w, http.StatusOK, dto.PortalResponse{URL: url}, h.logger)
}
