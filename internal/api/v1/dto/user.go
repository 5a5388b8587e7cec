package dto

import "time"

// UserResponseDTO is returned in API responses
type UserResponseDTO struct {
	UserID             string    `json:"user_id"`
	Email              string    `json:"email"`
	SubscriptionStatus string    `json:"subscription_status"`
	HasAPIKey          bool      `json:"has_api_key"`
	CreatedAt          time.Time `json:"created_at,omitzero"`
}

type APIKeyRequest struct {
	APIKey string `json:"api_key" validate:"required,max=512"`
}

type APIKeyStatusResponse struct {
	Configured bool `json:"configured"`
}
