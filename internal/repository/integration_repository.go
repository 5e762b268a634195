package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vipul43/privatezone/internal/models"
)

type IntegrationRepository struct {
	db *gorm.DB
}

func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// GetActiveIntegration retrieves the active integration for a user and provider
func (r *IntegrationRepository) GetActiveIntegration(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error) {
	var integration models.Integration
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND is_active", userID, provider).
		First(&integration)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &integration, nil
}

// FindIntegration retrieves the integration whether or not it is active
func (r *IntegrationRepository) FindIntegration(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error) {
	var integration models.Integration
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&integration)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &integration, nil
}

// UpsertIntegration inserts the integration or replaces the one stored for the same user and provider
func (r *IntegrationRepository) UpsertIntegration(ctx context.Context, integration *models.Integration) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"access_token", "refresh_token", "expires_at", "is_active",
				"scope", "account_email", "metadata", "updated_at",
			}),
		}).
		Create(integration)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert integration: %w", translate(result.Error))
	}
	return nil
}

// UpdateIntegrationTokens writes refreshed tokens only if expires_at still
// holds the value the caller read.
func (r *IntegrationRepository) UpdateIntegrationTokens(ctx context.Context, integrationID string, expectedExpiry *time.Time, update models.TokenUpdate) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Integration{}).Where("id = ?", integrationID)
	if expectedExpiry == nil {
		query = query.Where("expires_at IS NULL")
	} else {
		query = query.Where("expires_at = ?", *expectedExpiry)
	}

	result := query.Updates(map[string]interface{}{
		"access_token":  update.AccessToken,
		"refresh_token": update.RefreshToken,
		"expires_at":    update.ExpiresAt,
		"updated_at":    time.Now(),
	})
	if result.Error != nil {
		return false, fmt.Errorf("failed to update tokens: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeactivateIntegration soft-deletes the integration
func (r *IntegrationRepository) DeactivateIntegration(ctx context.Context, userID string, provider models.Provider) error {
	result := r.db.WithContext(ctx).Model(&models.Integration{}).
		Where("user_id = ? AND provider = ?", userID, provider).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate integration: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}
