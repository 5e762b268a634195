package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vipul43/privatezone/internal/models"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 500
	DefaultInlineLimit  = 1024 * 1024 // Attachments below this size are stored with their bytes
	labelSeparator      = ","
)

// MailSync mirrors Gmail messages and their attachments
type MailSync struct {
	tokens      TokenSource
	store       EmailStore
	mail        MailProvider
	inlineLimit int64
	now         func() time.Time
	logger      *zap.Logger
}

func NewMailSync(tokens TokenSource, store EmailStore, mail MailProvider, logger *zap.Logger) *MailSync {
	return &MailSync{
		tokens:      tokens,
		store:       store,
		mail:        mail,
		inlineLimit: DefaultInlineLimit,
		now:         time.Now,
		logger:      logger,
	}
}

// SetInlineLimit changes the size below which attachment bytes are stored
func (s *MailSync) SetInlineLimit(limit int64) {
	if limit > 0 {
		s.inlineLimit = limit
	}
}

// SyncMessages fetches up to limit messages matching query and upserts them.
// Content fields are written once; later passes only refresh flags and labels.
func (s *MailSync) SyncMessages(ctx context.Context, userID, query string, limit int) (*SyncResult, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	token, err := s.tokens.AccessToken(ctx, userID, models.ProviderGmail)
	if err != nil {
		return nil, err
	}

	messages, err := s.mail.ListMessages(ctx, token, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	log := s.logger.With(zap.String("user_id", userID), zap.String("provider", string(models.ProviderGmail)))
	log.Debug("fetched messages", zap.Int("count", len(messages)))

	result, err := reconcile(ctx, log, messages,
		func(m RemoteMessage) string { return m.ID },
		func(ctx context.Context, m RemoteMessage) (outcome, error) {
			email, out, err := s.upsertEmail(ctx, userID, m)
			if err != nil {
				return out, err
			}
			if err := s.syncAttachments(ctx, log, token, email, m); err != nil {
				return out, err
			}
			return out, nil
		},
	)
	if err != nil {
		return result, err
	}

	log.Info("mail sync complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *MailSync) upsertEmail(ctx context.Context, userID string, m RemoteMessage) (*models.Email, outcome, error) {
	if m.ID == "" {
		return nil, 0, fmt.Errorf("%w: message has no id", ErrMalformedRecord)
	}

	existing, err := s.store.FindEmailByProviderID(ctx, userID, m.ID)
	if err == nil {
		return s.updateEmail(ctx, existing, m)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, 0, fmt.Errorf("failed to find email: %w", err)
	}

	now := s.now()
	receivedAt := m.Date
	if receivedAt.IsZero() {
		receivedAt = now
	}
	providerID := m.ID
	email := &models.Email{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProviderID:  &providerID,
		Source:      models.SourceProvider,
		ThreadID:    m.ThreadID,
		From:        m.From,
		To:          m.To,
		Cc:          m.CC,
		Bcc:         m.BCC,
		Subject:     m.Subject,
		Body:        m.Body,
		BodyText:    m.BodyText,
		Snippet:     m.Snippet,
		Labels:      strings.Join(m.Labels, labelSeparator),
		IsRead:      m.IsRead,
		IsImportant: m.IsImportant,
		EmailType:   models.EmailTypeReceived,
		ReceivedAt:  receivedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateEmail(ctx, email); err != nil {
		if !errors.Is(err, models.ErrDuplicateKey) {
			return nil, 0, fmt.Errorf("failed to create email: %w", err)
		}
		existing, err := s.store.FindEmailByProviderID(ctx, userID, m.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to re-read email after conflict: %w", err)
		}
		return s.updateEmail(ctx, existing, m)
	}
	return email, outcomeCreated, nil
}

// updateEmail refreshes the mutable mailbox state only
func (s *MailSync) updateEmail(ctx context.Context, email *models.Email, m RemoteMessage) (*models.Email, outcome, error) {
	labels := strings.Join(m.Labels, labelSeparator)
	if email.IsRead == m.IsRead &&
		email.IsImportant == m.IsImportant &&
		email.Labels == labels &&
		email.Snippet == m.Snippet {
		return email, outcomeUnchanged, nil
	}

	email.IsRead = m.IsRead
	email.IsImportant = m.IsImportant
	email.Labels = labels
	email.Snippet = m.Snippet
	email.UpdatedAt = s.now()
	if err := s.store.UpdateEmail(ctx, email); err != nil {
		return nil, 0, fmt.Errorf("failed to update email: %w", err)
	}
	return email, outcomeUpdated, nil
}

// syncAttachments stores metadata for attachments not seen before, with the
// bytes when they are small enough. Download failures leave the bytes empty.
func (s *MailSync) syncAttachments(ctx context.Context, log *zap.Logger, token string, email *models.Email, m RemoteMessage) error {
	for _, remote := range m.Attachments {
		if remote.AttachmentID == "" {
			continue
		}

		_, err := s.store.FindAttachment(ctx, email.ID, remote.AttachmentID)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("failed to find attachment: %w", err)
		}

		attachment := &models.EmailAttachment{
			ID:                   uuid.New().String(),
			EmailID:              email.ID,
			ProviderAttachmentID: remote.AttachmentID,
			Filename:             remote.Filename,
			MimeType:             remote.MimeType,
			SizeBytes:            remote.Size,
			ContentID:            remote.ContentID,
			IsInline:             remote.Inline,
			CreatedAt:            s.now(),
		}

		if remote.Size < s.inlineLimit {
			data, err := s.mail.GetAttachment(ctx, token, m.ID, remote.AttachmentID)
			if err != nil {
				log.Warn("failed to download attachment",
					zap.String("provider_id", m.ID),
					zap.String("attachment_id", remote.AttachmentID),
					zap.Error(err))
			} else {
				attachment.Data = data
			}
		}

		if err := s.store.CreateAttachment(ctx, attachment); err != nil {
			if errors.Is(err, models.ErrDuplicateKey) {
				continue
			}
			return fmt.Errorf("failed to create attachment: %w", err)
		}
	}
	return nil
}

// AttachmentContent returns an attachment with its bytes, downloading them on
// demand when they were not stored during sync. Small downloads are backfilled.
func (s *MailSync) AttachmentContent(ctx context.Context, userID, emailID, attachmentID string) (*models.EmailAttachment, error) {
	email, err := s.store.GetEmail(ctx, userID, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	attachment, err := s.store.GetAttachment(ctx, email.ID, attachmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	if len(attachment.Data) > 0 {
		return attachment, nil
	}
	if email.ProviderID == nil || attachment.ProviderAttachmentID == "" {
		return nil, ErrAttachmentUnavailable
	}

	token, err := s.tokens.AccessToken(ctx, userID, models.ProviderGmail)
	if err != nil {
		return nil, err
	}
	data, err := s.mail.GetAttachment(ctx, token, *email.ProviderID, attachment.ProviderAttachmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	attachment.Data = data

	if int64(len(data)) < s.inlineLimit {
		if err := s.store.SetAttachmentData(ctx, attachment.ID, data); err != nil {
			s.logger.Warn("failed to backfill attachment data",
				zap.String("attachment_id", attachment.ID),
				zap.Error(err))
		}
	}
	return attachment, nil
}
