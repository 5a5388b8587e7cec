package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// APIKeyStore holds one LLM API key per user. GetAPIKey returns "" when the
// user has none. repository.APIKeyRepository and the Secret Manager store both
// satisfy it.
type APIKeyStore interface {
	GetAPIKey(ctx context.Context, userID string) (string, error)
	SetAPIKey(ctx context.Context, userID, apiKey string) error
	DeleteAPIKey(ctx context.Context, userID string) error
}

type APIKeyService interface {
	HasAPIKey(ctx context.Context, userID string) (bool, error)
	GetAPIKey(ctx context.Context, userID string) (string, error)
	// StoreAPIKey validates the key against the provider before saving it.
	StoreAPIKey(ctx context.Context, userID, apiKey string) error
	DeleteAPIKey(ctx context.Context, userID string) error
}

type apiKeyService struct {
	store     APIKeyStore
	validator LLMClient
	logger    zerolog.Logger
}

func NewAPIKeyService(store APIKeyStore, validator LLMClient, logger zerolog.Logger) APIKeyService {
	lg := logger.With().Str("service", "APIKeyService").Logger()
	return &apiKeyService{store: store, validator: validator, logger: lg}
}

func (s *apiKeyService) HasAPIKey(ctx context.Context, userID string) (bool, error) {
	key, err := s.store.GetAPIKey(ctx, userID)
	if err != nil {
		return false, err
	}
	return key != "", nil
}

func (s *apiKeyService) GetAPIKey(ctx context.Context, userID string) (string, error) {
	return s.store.GetAPIKey(ctx, userID)
}

func (s *apiKeyService) StoreAPIKey(ctx context.Context, userID, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if err := s.validator.ValidateAPIKey(ctx, apiKey); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("API key failed validation")
		return err
	}
	if err := s.store.SetAPIKey(ctx, userID, apiKey); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to store API key")
		return fmt.Errorf("store api key: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Msg("Stored API key")
	return nil
}

func (s *apiKeyService) DeleteAPIKey(ctx context.Context, userID string) error {
	if err := s.store.DeleteAPIKey(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete API key")
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}
