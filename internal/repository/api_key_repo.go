package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// APIKeyRepository caches one LLM API key per user.
type APIKeyRepository interface {
	// GetAPIKey returns "" when the user has no key.
	GetAPIKey(ctx context.Context, userID string) (string, error)
	SetAPIKey(ctx context.Context, userID, apiKey string) error
	DeleteAPIKey(ctx context.Context, userID string) error
}

type apiKeyRepo struct {
	pool *pgxpool.Pool
}

func NewAPIKeyRepo(pool *pgxpool.Pool) APIKeyRepository {
	return &apiKeyRepo{pool: pool}
}

func (r *apiKeyRepo) GetAPIKey(ctx context.Context, userID string) (string, error) {
	const q = `SELECT COALESCE(anthropic_key, '') FROM user_profiles WHERE user_id = $1`
	var key string
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("fetch api key for user %s: %w", userID, err)
	}
	return key, nil
}

func (r *apiKeyRepo) SetAPIKey(ctx context.Context, userID, apiKey string) error {
	const q = `
		INSERT INTO user_profiles (user_id, anthropic_key, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET anthropic_key = EXCLUDED.anthropic_key,
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, q, userID, apiKey); err != nil {
		return fmt.Errorf("store api key for user %s: %w", userID, err)
	}
	return nil
}

func (r *apiKeyRepo) DeleteAPIKey(ctx context.Context, userID string) error {
	const q = `UPDATE user_profiles SET anthropic_key = NULL, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("delete api key for user %s: %w", userID, err)
	}
	return nil
}
