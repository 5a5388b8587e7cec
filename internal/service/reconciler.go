package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flashcards/internal/model"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")
	ErrEmptyPayload         = errors.New("empty webhook payload")
	ErrMissingSignature     = errors.New("missing webhook signature")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMalformedEvent       = errors.New("malformed webhook event")
	ErrStateWrite           = errors.New("subscription state write failed")
)

// ReconcileAction describes what a delivered event did to stored state.
type ReconcileAction string

const (
	// ActionApplied means the event's target status was written.
	ActionApplied ReconcileAction = "applied"
	// ActionSkipped means a recognized event had nothing to apply.
	ActionSkipped ReconcileAction = "skipped"
	// ActionIgnored means the event type is not handled.
	ActionIgnored ReconcileAction = "ignored"
)

type ReconcileResult struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Action    ReconcileAction `json:"action"`
}

// SubscriptionStateStore is the slice of the user store the reconciler writes.
type SubscriptionStateStore interface {
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	SetSubscriptionStatus(ctx context.Context, userID string, status model.SubscriptionStatus, customerID string) error
}

type ReconcilerConfig struct {
	WebhookSecret string
	// Tolerance bounds the signature timestamp skew in both directions.
	Tolerance time.Duration
}

// WebhookReconciler verifies signed provider events and applies them to
// per-user subscription state.
type WebhookReconciler interface {
	Reconcile(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error)
}

type webhookReconciler struct {
	cfg    ReconcilerConfig
	store  SubscriptionStateStore
	logger zerolog.Logger
}

func NewWebhookReconciler(cfg ReconcilerConfig, store SubscriptionStateStore, logger zerolog.Logger) WebhookReconciler {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = webhook.DefaultTolerance
	}
	lg := logger.With().Str("service", "WebhookReconciler").Logger()
	return &webhookReconciler{cfg: cfg, store: store, logger: lg}
}

func (r *webhookReconciler) Reconcile(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if signature == "" {
		return nil, ErrMissingSignature
	}
	if r.cfg.WebhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}
	if err := r.verify(payload, signature); err != nil {
		return nil, err
	}

	event, err := DecodeWebhookEvent(payload)
	if err != nil {
		return nil, err
	}

	log := r.logger.With().Str("event_id", event.EventID()).Str("event_type", event.EventType()).Logger()
	result := &ReconcileResult{EventID: event.EventID(), EventType: event.EventType()}

	switch ev := event.(type) {
	case CheckoutCompleted:
		if ev.ClientReferenceID == "" {
			log.Warn().Str("session_id", ev.SessionID).Msg("Checkout completed without client_reference_id")
			result.Action = ActionSkipped
			return result, nil
		}
		if err := r.store.SetSubscriptionStatus(ctx, ev.ClientReferenceID, model.SubscriptionStatusSubscribed, ev.CustomerID); err != nil {
			log.Error().Err(err).Str("user_id", ev.ClientReferenceID).Msg("Failed to mark user subscribed")
			return nil, fmt.Errorf("%w: %w", ErrStateWrite, err)
		}
		log.Info().Str("user_id", ev.ClientReferenceID).Msg("User subscribed")
		result.Action = ActionApplied

	case SubscriptionDeleted:
		if ev.CustomerID == "" {
			log.Warn().Str("subscription_id", ev.SubscriptionID).Msg("Subscription deleted without customer")
			result.Action = ActionSkipped
			return result, nil
		}
		u, err := r.store.GetUserByStripeCustomerID(ctx, ev.CustomerID)
		if err != nil {
			log.Error().Err(err).Str("stripe_customer_id", ev.CustomerID).Msg("Failed to look up user by customer")
			return nil, fmt.Errorf("%w: %w", ErrStateWrite, err)
		}
		if u == nil {
			log.Info().Str("stripe_customer_id", ev.CustomerID).Msg("No user for deleted subscription's customer")
			result.Action = ActionSkipped
			return result, nil
		}
		if err := r.store.SetSubscriptionStatus(ctx, u.UserID, model.SubscriptionStatusUnsubscribed, ""); err != nil {
			log.Error().Err(err).Str("user_id", u.UserID).Msg("Failed to mark user unsubscribed")
			return nil, fmt.Errorf("%w: %w", ErrStateWrite, err)
		}
		log.Info().Str("user_id", u.UserID).Msg("User unsubscribed")
		result.Action = ActionApplied

	default:
		log.Debug().Msg("Ignoring unhandled webhook event")
		result.Action = ActionIgnored
	}
	return result, nil
}

// verify checks the HMAC tag and rejects timestamps older than the tolerance,
// then rejects timestamps further than the tolerance in the future.
func (r *webhookReconciler) verify(payload []byte, signature string) error {
	if err := webhook.ValidatePayloadWithTolerance(payload, signature, r.cfg.WebhookSecret, r.cfg.Tolerance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	ts, ok := signatureTimestamp(signature)
	if !ok {
		return fmt.Errorf("%w: unreadable timestamp", ErrInvalidSignature)
	}
	if time.Until(ts) > r.cfg.Tolerance {
		return fmt.Errorf("%w: timestamp too far in the future", ErrInvalidSignature)
	}
	return nil
}

func signatureTimestamp(header string) (time.Time, bool) {
	for _, item := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || k != "t" {
			continue
		}
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}
