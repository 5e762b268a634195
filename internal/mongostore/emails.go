package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vipul43/privatezone/internal/models"
)

func (s *Store) FindEmailByProviderID(ctx context.Context, userID, providerID string) (*models.Email, error) {
	var email models.Email
	if err := s.findOne(ctx, s.emails, bson.M{"user_id": userID, "provider_id": providerID}, &email); err != nil {
		return nil, err
	}
	return &email, nil
}

func (s *Store) GetEmail(ctx context.Context, userID, emailID string) (*models.Email, error) {
	var email models.Email
	if err := s.findOne(ctx, s.emails, bson.M{"_id": emailID, "user_id": userID}, &email); err != nil {
		return nil, err
	}
	return &email, nil
}

func (s *Store) CreateEmail(ctx context.Context, email *models.Email) error {
	return s.insert(ctx, s.emails, email)
}

func (s *Store) UpdateEmail(ctx context.Context, email *models.Email) error {
	return s.replace(ctx, s.emails, email.ID, email)
}

// FindAttachment looks up attachment metadata without loading the bytes
func (s *Store) FindAttachment(ctx context.Context, emailID, providerAttachmentID string) (*models.EmailAttachment, error) {
	var attachment models.EmailAttachment
	filter := bson.M{"email_id": emailID, "provider_attachment_id": providerAttachmentID}
	opts := options.FindOne().SetProjection(bson.M{"data": 0})
	if err := s.findOne(ctx, s.attachments, filter, &attachment, opts); err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (s *Store) GetAttachment(ctx context.Context, emailID, attachmentID string) (*models.EmailAttachment, error) {
	var attachment models.EmailAttachment
	if err := s.findOne(ctx, s.attachments, bson.M{"_id": attachmentID, "email_id": emailID}, &attachment); err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (s *Store) CreateAttachment(ctx context.Context, attachment *models.EmailAttachment) error {
	return s.insert(ctx, s.attachments, attachment)
}

func (s *Store) SetAttachmentData(ctx context.Context, attachmentID string, data []byte) error {
	result, err := s.attachments.UpdateOne(ctx, bson.M{"_id": attachmentID}, bson.M{"$set": bson.M{"data": data}})
	if err != nil {
		return fmt.Errorf("failed to store attachment data: %w", err)
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
