package service

import (
	"context"
	"errors"
	"fmt"

	"flashcards/internal/model"
	"flashcards/internal/repository"

	"github.com/rs/zerolog"
)

var (
	ErrNoStripeCustomer      = errors.New("no stripe customer for user")
	ErrNoActiveSubscription  = errors.New("no active subscription")
	ErrNoPendingCancellation = errors.New("no subscription pending cancellation")
)

type StripeConfig struct {
	PriceID         string
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string
}

// StripeService handles the user-initiated billing calls: checkout, cancel,
// reactivate and the billing portal.
type StripeService interface {
	CreateCheckoutSession(ctx context.Context, userID, email string) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, userID string) error
	ReactivateSubscription(ctx context.Context, userID string) error
	CreatePortalSession(ctx context.Context, userID string) (string, error)
}

type stripeService struct {
	cfg      StripeConfig
	userRepo repository.UserRepository
	gateway  PaymentGateway
	logger   zerolog.Logger
}

func NewStripeService(cfg StripeConfig, userRepo repository.UserRepository, gateway PaymentGateway, logger zerolog.Logger) StripeService {
	lg := logger.With().Str("service", "StripeService").Logger()
	return &stripeService{cfg: cfg, userRepo: userRepo, gateway: gateway, logger: lg}
}

// resolveCustomer returns the user's customer id, reusing a stored one, then
// an existing provider customer with the same email that no other user owns,
// then a new one. The id is assigned to the user at most once.
func (s *stripeService) resolveCustomer(ctx context.Context, user *model.User) (string, error) {
	if id := user.CustomerID(); id != "" {
		return id, nil
	}

	customerID, err := s.gateway.FindCustomerByEmail(ctx, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to look up Stripe customer by email")
		return "", err
	}
	if customerID != "" {
		owner, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerID)
		if err != nil {
			return "", fmt.Errorf("look up owner of stripe customer: %w", err)
		}
		if owner != nil && owner.UserID != user.UserID {
			s.logger.Warn().Str("user_id", user.UserID).Str("stripe_customer_id", customerID).Msg("Email-matched Stripe customer belongs to another user; creating a new one")
			customerID = ""
		}
	}
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, user.Email, user.UserID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to create Stripe customer")
			return "", err
		}
		s.logger.Info().Str("user_id", user.UserID).Str("stripe_customer_id", customerID).Msg("Created Stripe customer")
	}

	stored, err := s.userRepo.AssignStripeCustomerID(ctx, user.UserID, customerID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to store Stripe customer id")
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	if stored != customerID {
		s.logger.Warn().Str("user_id", user.UserID).Str("stripe_customer_id", stored).Msg("User already had a Stripe customer; keeping it")
	}
	return stored, nil
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, userID, email string) (*CheckoutSession, error) {
	user, err := s.userRepo.UpsertUser(ctx, userID, email)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to upsert user for checkout session")
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	customerID, err := s.resolveCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionInput{
		CustomerID:        customerID,
		ClientReferenceID: userID,
		PriceID:           s.cfg.PriceID,
		SuccessURL:        s.cfg.SuccessURL,
		CancelURL:         s.cfg.CancelURL,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe checkout session")
		return nil, err
	}
	return sess, nil
}

func (s *stripeService) customerFor(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	}
	customerID := user.CustomerID()
	if customerID == "" {
		return "", ErrNoStripeCustomer
	}
	return customerID, nil
}

func (s *stripeService) CancelSubscription(ctx context.Context, userID string) error {
	customerID, err := s.customerFor(ctx, userID)
	if err != nil {
		return err
	}
	subs, err := s.gateway.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list subscriptions for cancel")
		return err
	}
	if len(subs) == 0 {
		return ErrNoActiveSubscription
	}
	for _, sub := range subs {
		if sub.CancelAtPeriodEnd {
			continue
		}
		if err := s.gateway.SetCancelAtPeriodEnd(ctx, sub.ID, true); err != nil {
			s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to schedule subscription cancellation")
			return err
		}
	}
	if err := s.userRepo.SetSubscriptionStatus(ctx, userID, model.SubscriptionStatusPendingCancellation, ""); err != nil {
		return fmt.Errorf("set subscription status: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Int("subscriptions", len(subs)).Msg("Subscription set to cancel at period end")
	return nil
}

func (s *stripeService) ReactivateSubscription(ctx context.Context, userID string) error {
	customerID, err := s.customerFor(ctx, userID)
	if err != nil {
		return err
	}
	subs, err := s.gateway.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list subscriptions for reactivate")
		return err
	}
	pending := 0
	for _, sub := range subs {
		if !sub.CancelAtPeriodEnd {
			continue
		}
		pending++
		if err := s.gateway.SetCancelAtPeriodEnd(ctx, sub.ID, false); err != nil {
			s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to reactivate subscription")
			return err
		}
	}
	if pending == 0 {
		return ErrNoPendingCancellation
	}
	if err := s.userRepo.SetSubscriptionStatus(ctx, userID, model.SubscriptionStatusSubscribed, ""); err != nil {
		return fmt.Errorf("set subscription status: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Int("subscriptions", pending).Msg("Subscription reactivated")
	return nil
}

func (s *stripeService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	customerID, err := s.customerFor(ctx, userID)
	if err != nil {
		return "", err
	}
	url, err := s.gateway.CreatePortalSession(ctx, customerID, s.cfg.PortalReturnURL)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe billing portal session")
		return "", err
	}
	return url, nil
}
