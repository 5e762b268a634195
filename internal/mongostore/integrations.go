package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vipul43/privatezone/internal/models"
)

func (s *Store) GetActiveIntegration(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error) {
	var integration models.Integration
	filter := bson.M{"user_id": userID, "provider": provider, "is_active": true}
	if err := s.findOne(ctx, s.integrations, filter, &integration); err != nil {
		return nil, err
	}
	return &integration, nil
}

func (s *Store) FindIntegration(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error) {
	var integration models.Integration
	if err := s.findOne(ctx, s.integrations, bson.M{"user_id": userID, "provider": provider}, &integration); err != nil {
		return nil, err
	}
	return &integration, nil
}

// UpsertIntegration replaces the record for (user, provider), keeping the
// original _id and created_at when one exists.
func (s *Store) UpsertIntegration(ctx context.Context, integration *models.Integration) error {
	filter := bson.M{"user_id": integration.UserID, "provider": integration.Provider}
	update := bson.M{
		"$set": bson.M{
			"access_token":  integration.AccessToken,
			"refresh_token": integration.RefreshToken,
			"expires_at":    integration.ExpiresAt,
			"is_active":     integration.IsActive,
			"scope":         integration.Scope,
			"account_email": integration.AccountEmail,
			"metadata":      integration.Metadata,
			"updated_at":    integration.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        integration.ID,
			"created_at": integration.CreatedAt,
		},
	}

	if _, err := s.integrations.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert integration: %w", translate(err))
	}
	return nil
}

// UpdateIntegrationTokens writes refreshed tokens only if expires_at still
// holds the value the caller read.
func (s *Store) UpdateIntegrationTokens(ctx context.Context, integrationID string, expectedExpiry *time.Time, update models.TokenUpdate) (bool, error) {
	filter := bson.M{"_id": integrationID, "expires_at": nil}
	if expectedExpiry != nil {
		filter["expires_at"] = *expectedExpiry
	}

	result, err := s.integrations.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"access_token":  update.AccessToken,
		"refresh_token": update.RefreshToken,
		"expires_at":    update.ExpiresAt,
		"updated_at":    time.Now(),
	}})
	if err != nil {
		return false, fmt.Errorf("failed to update tokens: %w", err)
	}
	return result.MatchedCount == 1, nil
}

func (s *Store) DeactivateIntegration(ctx context.Context, userID string, provider models.Provider) error {
	result, err := s.integrations.UpdateOne(ctx,
		bson.M{"user_id": userID, "provider": provider},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate integration: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
