package service

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

// WebhookEvent is a verified provider event decoded into one of the kinds the
// reconciler knows how to apply. The set is closed: CheckoutCompleted,
// SubscriptionDeleted and UnhandledEvent.
type WebhookEvent interface {
	EventID() string
	EventType() string
	webhookEvent()
}

// CheckoutCompleted is checkout.session.completed. ClientReferenceID carries
// the user id passed at session creation.
type CheckoutCompleted struct {
	ID                string
	SessionID         string
	ClientReferenceID string
	CustomerID        string
}

// SubscriptionDeleted is customer.subscription.deleted.
type SubscriptionDeleted struct {
	ID             string
	SubscriptionID string
	CustomerID     string
}

// UnhandledEvent is any other event type. It is acknowledged without action.
type UnhandledEvent struct {
	ID   string
	Type string
}

func (e CheckoutCompleted) EventID() string   { return e.ID }
func (e CheckoutCompleted) EventType() string { return string(stripe.EventTypeCheckoutSessionCompleted) }
func (CheckoutCompleted) webhookEvent()       {}

func (e SubscriptionDeleted) EventID() string { return e.ID }
func (e SubscriptionDeleted) EventType() string {
	return string(stripe.EventTypeCustomerSubscriptionDeleted)
}
func (SubscriptionDeleted) webhookEvent() {}

func (e UnhandledEvent) EventID() string   { return e.ID }
func (e UnhandledEvent) EventType() string { return e.Type }
func (UnhandledEvent) webhookEvent()       {}

// DecodeWebhookEvent decodes an already verified payload. Errors wrap
// ErrMalformedEvent.
func DecodeWebhookEvent(payload []byte) (WebhookEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		if event.Data == nil {
			return nil, fmt.Errorf("%w: %s without data", ErrMalformedEvent, event.Type)
		}
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %w", ErrMalformedEvent, err)
		}
		out := CheckoutCompleted{ID: event.ID, SessionID: cs.ID, ClientReferenceID: cs.ClientReferenceID}
		if cs.Customer != nil {
			out.CustomerID = cs.Customer.ID
		}
		return out, nil

	case stripe.EventTypeCustomerSubscriptionDeleted:
		if event.Data == nil {
			return nil, fmt.Errorf("%w: %s without data", ErrMalformedEvent, event.Type)
		}
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %w", ErrMalformedEvent, err)
		}
		out := SubscriptionDeleted{ID: event.ID, SubscriptionID: sub.ID}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		return out, nil
	}

	return UnhandledEvent{ID: event.ID, Type: string(event.Type)}, nil
}
