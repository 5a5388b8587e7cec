package service

import (
	"context"

	"flashcards/internal/model"
	"flashcards/internal/repository"
)

type UserProfile struct {
	User      *model.User
	HasAPIKey bool
}

type UserService interface {
	// Get returns the stored record, or the default unsubscribed record.
	Get(ctx context.Context, id string) (*model.User, error)
	Profile(ctx context.Context, id string) (*UserProfile, error)
}

type userService struct {
	userRepo repository.UserRepository
	apiKeys  APIKeyService
}

func NewUserService(userRepo repository.UserRepository, apiKeys APIKeyService) UserService {
	return &userService{userRepo: userRepo, apiKeys: apiKeys}
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return model.DefaultUser(id), nil
	}
	return u, nil
}

func (s *userService) Profile(ctx context.Context, id string) (*UserProfile, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	hasKey, err := s.apiKeys.HasAPIKey(ctx, id)
	if err != nil {
		return nil, err
	}
	return &UserProfile{User: u, HasAPIKey: hasKey}, nil
}
