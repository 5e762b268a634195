package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vipul43/privatezone/internal/models"
)

type EmailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

func (r *EmailRepository) FindEmailByProviderID(ctx context.Context, userID, providerID string) (*models.Email, error) {
	var email models.Email
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, providerID).
		First(&email)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &email, nil
}

// GetEmail retrieves an email by ID, scoped to its owner
func (r *EmailRepository) GetEmail(ctx context.Context, userID, emailID string) (*models.Email, error) {
	var email models.Email
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", emailID, userID).
		First(&email)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &email, nil
}

func (r *EmailRepository) CreateEmail(ctx context.Context, email *models.Email) error {
	return translate(r.db.WithContext(ctx).Create(email).Error)
}

func (r *EmailRepository) UpdateEmail(ctx context.Context, email *models.Email) error {
	result := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("id = ?", email.ID).
		Select("*").Omit("id", "created_at").
		Updates(email)
	if result.Error != nil {
		return fmt.Errorf("failed to update email: %w", translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *EmailRepository) FindAttachment(ctx context.Context, emailID, providerAttachmentID string) (*models.EmailAttachment, error) {
	var attachment models.EmailAttachment
	result := r.db.WithContext(ctx).
		Omit("data").
		Where("email_id = ? AND provider_attachment_id = ?", emailID, providerAttachmentID).
		First(&attachment)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &attachment, nil
}

// GetAttachment retrieves an attachment including its bytes
func (r *EmailRepository) GetAttachment(ctx context.Context, emailID, attachmentID string) (*models.EmailAttachment, error) {
	var attachment models.EmailAttachment
	result := r.db.WithContext(ctx).
		Where("id = ? AND email_id = ?", attachmentID, emailID).
		First(&attachment)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &attachment, nil
}

func (r *EmailRepository) CreateAttachment(ctx context.Context, attachment *models.EmailAttachment) error {
	return translate(r.db.WithContext(ctx).Create(attachment).Error)
}

func (r *EmailRepository) SetAttachmentData(ctx context.Context, attachmentID string, data []byte) error {
	result := r.db.WithContext(ctx).Model(&models.EmailAttachment{}).
		Where("id = ?", attachmentID).
		Update("data", data)
	if result.Error != nil {
		return fmt.Errorf("failed to store attachment data: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}
