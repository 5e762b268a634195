package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vipul43/privatezone/internal/models"
)

// ConnectionStatus is what the portal shows for one provider
type ConnectionStatus struct {
	Provider       models.Provider `json:"provider"`
	Connected      bool            `json:"connected"`
	ConnectedSince *time.Time      `json:"connectedSince,omitempty"`
	AccountEmail   string          `json:"accountEmail,omitempty"`
}

// IntegrationService runs the OAuth connect and disconnect lifecycle
type IntegrationService struct {
	store     IntegrationStore
	providers map[models.Provider]OAuthProvider
	now       func() time.Time
	logger    *zap.Logger
}

func NewIntegrationService(store IntegrationStore, providers map[models.Provider]OAuthProvider, logger *zap.Logger) *IntegrationService {
	return &IntegrationService{
		store:     store,
		providers: providers,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *IntegrationService) oauth(provider models.Provider) (OAuthProvider, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	return p, nil
}

// AuthURL returns the provider consent URL carrying state
func (s *IntegrationService) AuthURL(provider models.Provider, state string) (string, error) {
	p, err := s.oauth(provider)
	if err != nil {
		return "", err
	}
	return p.AuthCodeURL(state), nil
}

// Connect exchanges an authorization code and stores the resulting tokens,
// replacing (and reactivating) any earlier record for the same provider.
func (s *IntegrationService) Connect(ctx context.Context, userID string, provider models.Provider, code string) (*models.Integration, error) {
	p, err := s.oauth(provider)
	if err != nil {
		return nil, err
	}

	tokens, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	now := s.now()
	expiresAt := tokens.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(DefaultTokenTTL)
	}

	integration := &models.Integration{
		ID:           uuid.New().String(),
		UserID:       userID,
		Provider:     provider,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    &expiresAt,
		IsActive:     true,
		Scope:        tokens.Scope,
		AccountEmail: tokens.AccountEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	existing, err := s.store.FindIntegration(ctx, userID, provider)
	switch {
	case err == nil:
		integration.ID = existing.ID
		integration.CreatedAt = existing.CreatedAt
		// Providers only return a refresh token on first consent
		if integration.RefreshToken == "" {
			integration.RefreshToken = existing.RefreshToken
		}
		if integration.AccountEmail == "" {
			integration.AccountEmail = existing.AccountEmail
		}
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	if err := s.store.UpsertIntegration(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to save integration: %w", err)
	}

	s.logger.Info("integration connected",
		zap.String("user_id", userID),
		zap.String("provider", string(provider)),
		zap.String("integration_id", integration.ID))
	return integration, nil
}

// Disconnect marks the integration inactive. The record is kept.
func (s *IntegrationService) Disconnect(ctx context.Context, userID string, provider models.Provider) error {
	err := s.store.DeactivateIntegration(ctx, userID, provider)
	if errors.Is(err, models.ErrNotFound) {
		return ErrIntegrationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to deactivate integration: %w", err)
	}

	s.logger.Info("integration disconnected", zap.String("user_id", userID), zap.String("provider", string(provider)))
	return nil
}

// Status reports whether an active integration exists
func (s *IntegrationService) Status(ctx context.Context, userID string, provider models.Provider) (*ConnectionStatus, error) {
	status := &ConnectionStatus{Provider: provider}

	integration, err := s.store.GetActiveIntegration(ctx, userID, provider)
	if errors.Is(err, models.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	status.Connected = true
	status.ConnectedSince = &integration.CreatedAt
	status.AccountEmail = integration.AccountEmail
	return status, nil
}
