package service

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// secretManagerKeyStore keeps each user's API key as a Secret Manager secret
// named user-<id>-anthropic-key; the latest version is the current key.
type secretManagerKeyStore struct {
	client    *secretmanager.Client
	projectID string
}

func NewSecretManagerKeyStore(ctx context.Context, projectID string, opts ...option.ClientOption) (APIKeyStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP project id is not set")
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &secretManagerKeyStore{client: client, projectID: projectID}, nil
}

func secretName(userID string) string {
	return fmt.Sprintf("user-%s-anthropic-key", userID)
}

func (s *secretManagerKeyStore) secretPath(userID string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, secretName(userID))
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *secretManagerKeyStore) SetAPIKey(ctx context.Context, userID, apiKey string) error {
	secretPath := s.secretPath(userID)

	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: secretPath})
	switch {
	case isNotFound(err):
		_, err := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: secretName(userID),
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create secret: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up secret: %w", err)
	}

	_, err = s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  secretPath,
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(apiKey)},
	})
	if err != nil {
		return fmt.Errorf("failed to add secret version: %w", err)
	}
	return nil
}

func (s *secretManagerKeyStore) GetAPIKey(ctx context.Context, userID string) (string, error) {
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretPath(userID) + "/versions/latest",
	})
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return string(result.Payload.Data), nil
}

func (s *secretManagerKeyStore) DeleteAPIKey(ctx context.Context, userID string) error {
	err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: s.secretPath(userID)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
