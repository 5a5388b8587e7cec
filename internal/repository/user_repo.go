package repository

import (
	"context"
	"errors"
	"fmt"

	"flashcards/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStripeCustomerTaken is returned when a customer id is already assigned to
// a different user.
var ErrStripeCustomerTaken = errors.New("stripe customer belongs to another user")

const pgUniqueViolation = "23505"

// UserRepository stores per-user subscription records. Every write is an
// upsert: writing to a user without a record creates it.
type UserRepository interface {
	// GetUser returns nil, nil when the user has no record.
	GetUser(ctx context.Context, userID string) (*model.User, error)
	// GetUserByStripeCustomerID returns nil, nil when no user owns the customer.
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	// UpsertUser creates the record if missing and refreshes a non-empty email.
	UpsertUser(ctx context.Context, userID, email string) (*model.User, error)
	// AssignStripeCustomerID sets the customer id unless one is already set
	// and returns the id that is stored afterwards. It fails with
	// ErrStripeCustomerTaken when another user owns customerID.
	AssignStripeCustomerID(ctx context.Context, userID, customerID string) (string, error)
	// SetSubscriptionStatus writes status in a single write. A non-empty
	// customerID is attached when the user has none yet and no other user
	// owns it.
	SetSubscriptionStatus(ctx context.Context, userID string, status model.SubscriptionStatus, customerID string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `user_id, email, stripe_customer_id, subscription_status, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var status string
	if err := row.Scan(&u.UserID, &u.Email, &u.StripeCustomerID, &status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.SubscriptionStatus = model.SubscriptionStatus(status)
	return &u, nil
}

func (r *userRepo) GetUser(ctx context.Context, userID string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM user_profiles WHERE user_id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %s: %w", userID, err)
	}
	return u, nil
}

func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM user_profiles WHERE stripe_customer_id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user by stripe customer %s: %w", customerID, err)
	}
	return u, nil
}

func (r *userRepo) UpsertUser(ctx context.Context, userID, email string) (*model.User, error) {
	q := `
		INSERT INTO user_profiles (user_id, email, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE user_profiles.email END,
			updated_at = NOW()
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, userID, email))
	if err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", userID, err)
	}
	return u, nil
}

func (r *userRepo) AssignStripeCustomerID(ctx context.Context, userID, customerID string) (string, error) {
	const q = `
		INSERT INTO user_profiles (user_id, stripe_customer_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET stripe_customer_id = COALESCE(user_profiles.stripe_customer_id, EXCLUDED.stripe_customer_id),
			updated_at = NOW()
		RETURNING stripe_customer_id
	`
	var stored string
	if err := r.pool.QueryRow(ctx, q, userID, customerID).Scan(&stored); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", fmt.Errorf("assign stripe customer id %s for user %s: %w", customerID, userID, ErrStripeCustomerTaken)
		}
		return "", fmt.Errorf("assign stripe customer id for user %s: %w", userID, err)
	}
	return stored, nil
}

func (r *userRepo) SetSubscriptionStatus(ctx context.Context, userID string, status model.SubscriptionStatus, customerID string) error {
	const q = `
		INSERT INTO user_profiles (user_id, stripe_customer_id, subscription_status, created_at, updated_at)
		VALUES (
			$1,
			CASE WHEN EXISTS (SELECT 1 FROM user_profiles WHERE stripe_customer_id = $2 AND user_id <> $1)
				THEN NULL ELSE NULLIF($2, '') END,
			$3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET subscription_status = EXCLUDED.subscription_status,
			stripe_customer_id = COALESCE(user_profiles.stripe_customer_id, EXCLUDED.stripe_customer_id),
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, q, userID, customerID, string(status)); err != nil {
		return fmt.Errorf("set subscription status %s for user %s: %w", status, userID, err)
	}
	return nil
}
