package dto

// CheckoutResponse carries the hosted checkout page for the caller to open.
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type PortalResponse struct {
	URL string `json:"url"`
}

// SubscriptionResponseDTO is the caller's subscription record.
type SubscriptionResponseDTO struct {
	UserID             string `json:"user_id"`
	SubscriptionStatus string `json:"subscription_status"`
	IsSubscribed       bool   `json:"is_subscribed"`
	HasStripeCustomer  bool   `json:"has_stripe_customer"`
}

type SubscriptionStatusResponse struct {
	SubscriptionStatus string `json:"subscription_status"`
}

// WebhookResponse acknowledges a processed webhook delivery.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}
