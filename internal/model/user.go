package model

import "time"

// SubscriptionStatus is the billing state of a user.
type SubscriptionStatus string

const (
	SubscriptionStatusUnsubscribed        SubscriptionStatus = "unsubscribed"
	SubscriptionStatusSubscribed          SubscriptionStatus = "subscribed"
	SubscriptionStatusPendingCancellation SubscriptionStatus = "pending_cancellation"
)

// Valid reports whether s is one of the known statuses.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusUnsubscribed, SubscriptionStatusSubscribed, SubscriptionStatusPendingCancellation:
		return true
	}
	return false
}

// User is the per-user subscription record. A user without a stored record
// is treated as DefaultUser.
type User struct {
	UserID             string             `db:"user_id" json:"user_id"`
	Email              string             `db:"email" json:"email"`
	StripeCustomerID   *string            `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	SubscriptionStatus SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// DefaultUser returns the record an absent user reads as.
func DefaultUser(userID string) *User {
	return &User{UserID: userID, SubscriptionStatus: SubscriptionStatusUnsubscribed}
}

// CustomerID returns the Stripe customer id or "" when none is assigned.
func (u *User) CustomerID() string {
	if u == nil || u.StripeCustomerID == nil {
		return ""
	}
	return *u.StripeCustomerID
}
