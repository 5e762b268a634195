package service

import (
	"context"
	"time"
)

// TokenRefresher exchanges a refresh token for a new access token.
// A rejected grant must be reported as ErrReauthorizationRequired.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*TokenRefreshResult, error)
}

// OAuthProvider is the authorization-code half of an OAuth client
type OAuthProvider interface {
	TokenRefresher
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*TokenSet, error)
}

// CalendarProvider is a remote calendar API
type CalendarProvider interface {
	ListEvents(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error)
	GetEvent(ctx context.Context, accessToken, eventID string) (*RemoteEvent, error)
	CreateEvent(ctx context.Context, accessToken string, input EventInput) (*RemoteEvent, error)
	UpdateEvent(ctx context.Context, accessToken, eventID string, input EventInput) (*RemoteEvent, error)
	DeleteEvent(ctx context.Context, accessToken, eventID string) error
	// TruncateSeries ends the master's recurrence so that no occurrence starts
	// at or after cutoff. For all-day series cutoff is the instance's date.
	TruncateSeries(ctx context.Context, accessToken, masterID string, cutoff time.Time) error
}

// MailProvider is a remote mailbox API
type MailProvider interface {
	ListMessages(ctx context.Context, accessToken, query string, limit int) ([]RemoteMessage, error)
	GetAttachment(ctx context.Context, accessToken, messageID, attachmentID string) ([]byte, error)
}

// TaskProvider is a remote task list API
type TaskProvider interface {
	ListTasks(ctx context.Context, accessToken string) ([]RemoteTask, error)
	InsertTask(ctx context.Context, accessToken string, task RemoteTask) (*RemoteTask, error)
}

type TokenRefreshResult struct {
	AccessToken  string
	ExpiresAt    time.Time // Zero when the provider did not say
	RefreshToken string    // Empty unless the provider rotated it
}

type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	AccountEmail string
}

// RemoteEvent is a provider event before normalization. Start and End are
// YYYY-MM-DD for all-day events and RFC3339 date-times otherwise.
type RemoteEvent struct {
	ID               string
	Title            string
	Description      string
	Location         string
	Start            string
	End              string
	TimeZone         string
	AllDay           bool
	Recurring        bool
	RecurringEventID string   // Series master, set on expanded occurrences
	Recurrence       []string // RRULE/EXDATE lines, set on masters
	OriginalStart    string   // Occurrence's slot in the series, before any move
	Status           string
}

// EventInput is a create or update request for a provider event
type EventInput struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	TimeZone    string
	Recurrence  []string // nil leaves the remote recurrence untouched on update
}

type RemoteMessage struct {
	ID          string
	ThreadID    string
	Subject     string
	From        string
	To          string
	CC          string
	BCC         string
	Date        time.Time
	Body        string // HTML when present, else plain text
	BodyText    string
	Snippet     string
	Labels      []string
	IsRead      bool
	IsImportant bool
	Attachments []RemoteAttachment
}

type RemoteAttachment struct {
	AttachmentID string
	Filename     string
	MimeType     string
	Size         int64
	ContentID    string
	Inline       bool
}

// RemoteTask is a provider task. Due and Completed are RFC3339 or empty.
type RemoteTask struct {
	ID        string
	Title     string
	Notes     string
	Status    string
	Due       string
	Completed string
}

const (
	TaskStatusNeedsAction = "needsAction"
	TaskStatusCompleted   = "completed"
)
