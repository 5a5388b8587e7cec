package service

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	subscriptionpkg "github.com/stripe/stripe-go/v82/subscription"
)

type CheckoutSessionInput struct {
	CustomerID        string
	ClientReferenceID string
	PriceID           string
	SuccessURL        string
	CancelURL         string
}

type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// ProviderSubscription is the part of a provider subscription cancel and
// reactivate need.
type ProviderSubscription struct {
	ID                string
	CancelAtPeriodEnd bool
}

// PaymentGateway is the payments provider API used outside the webhook path.
type PaymentGateway interface {
	// FindCustomerByEmail returns "" when no customer has the email.
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error)
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type stripeGateway struct{}

// NewStripeGateway sets the package-level Stripe key and returns a gateway
// backed by the stripe-go resource packages.
func NewStripeGateway(secretKey string) PaymentGateway {
	stripe.Key = secretKey
	return &stripeGateway{}
}

func (g *stripeGateway) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", nil
	}
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	iter := customerpkg.List(params)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("list stripe customers: %w", err)
	}
	return "", nil
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{Metadata: map[string]string{"user_id": userID}}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	cust, err := customerpkg.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(in.CustomerID),
		ClientReferenceID: stripe.String(in.ClientReferenceID),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(1)}},
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
	}
	params.Context = ctx
	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *stripeGateway) ListActiveSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	iter := subscriptionpkg.List(params)
	var subs []ProviderSubscription
	for iter.Next() {
		s := iter.Subscription()
		subs = append(subs, ProviderSubscription{ID: s.ID, CancelAtPeriodEnd: s.CancelAtPeriodEnd})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list stripe subscriptions: %w", err)
	}
	return subs, nil
}

func (g *stripeGateway) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	params.Context = ctx
	if _, err := subscriptionpkg.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("update stripe subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (g *stripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := billingsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}
