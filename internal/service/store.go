package service

import (
	"context"
	"time"

	"github.com/vipul43/privatezone/internal/models"
)

// IntegrationStore persists provider credentials.
// Lookups return models.ErrNotFound when nothing matches.
type IntegrationStore interface {
	GetActiveIntegration(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error)
	FindIntegration(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error)
	UpsertIntegration(ctx context.Context, integration *models.Integration) error
	// UpdateIntegrationTokens writes update only while the stored expiry still
	// equals expectedExpiry. It reports whether the write happened.
	UpdateIntegrationTokens(ctx context.Context, integrationID string, expectedExpiry *time.Time, update models.TokenUpdate) (bool, error)
	DeactivateIntegration(ctx context.Context, userID string, provider models.Provider) error
}

// EventStore persists mirrored calendar events
type EventStore interface {
	FindEventByProviderID(ctx context.Context, userID, providerID string) (*models.CalendarEvent, error)
	CreateEvent(ctx context.Context, event *models.CalendarEvent) error
	UpdateEvent(ctx context.Context, event *models.CalendarEvent) error
	DeleteEventByProviderID(ctx context.Context, userID, providerID string) error
	// DeleteEventSeries removes the master row and every occurrence carrying
	// seriesID. With from set only occurrences starting at or after it go.
	DeleteEventSeries(ctx context.Context, userID, seriesID string, from *time.Time) (int64, error)
	// ListSeriesOccurrences returns the occurrence rows of seriesID ordered by start
	ListSeriesOccurrences(ctx context.Context, userID, seriesID string) ([]models.CalendarEvent, error)
}

// EmailStore persists mirrored messages and their attachments
type EmailStore interface {
	FindEmailByProviderID(ctx context.Context, userID, providerID string) (*models.Email, error)
	GetEmail(ctx context.Context, userID, emailID string) (*models.Email, error)
	CreateEmail(ctx context.Context, email *models.Email) error
	UpdateEmail(ctx context.Context, email *models.Email) error

	FindAttachment(ctx context.Context, emailID, providerAttachmentID string) (*models.EmailAttachment, error)
	GetAttachment(ctx context.Context, emailID, attachmentID string) (*models.EmailAttachment, error)
	CreateAttachment(ctx context.Context, attachment *models.EmailAttachment) error
	SetAttachmentData(ctx context.Context, attachmentID string, data []byte) error
}

// TaskStore persists mirrored and locally authored tasks
type TaskStore interface {
	FindTaskByProviderID(ctx context.Context, userID, providerID string) (*models.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*models.Task, error)
	CreateTask(ctx context.Context, task *models.Task) error
	UpdateTask(ctx context.Context, task *models.Task) error
}

// Store is the full local store. repository.Store and mongostore.Store implement it.
type Store interface {
	IntegrationStore
	EventStore
	EmailStore
	TaskStore
}

// Locker serializes token refreshes across processes
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
