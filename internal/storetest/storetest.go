// Package storetest holds the behavioural checks every service.Store
// backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipul43/privatezone/internal/models"
	"github.com/vipul43/privatezone/internal/service"
)

// Run exercises store against the shared contract. Each subtest uses its own user.
func Run(t *testing.T, store service.Store) {
	t.Run("integrations", func(t *testing.T) { testIntegrations(t, store) })
	t.Run("token compare and swap", func(t *testing.T) { testTokenCAS(t, store) })
	t.Run("events", func(t *testing.T) { testEvents(t, store) })
	t.Run("event series delete", func(t *testing.T) { testEventSeries(t, store) })
	t.Run("emails and attachments", func(t *testing.T) { testEmails(t, store) })
	t.Run("tasks", func(t *testing.T) { testTasks(t, store) })
}

func newUser() string { return "user-" + uuid.New().String() }

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(s string) *string { return &s }

func testIntegrations(t *testing.T, store service.Store) {
	ctx := context.Background()
	user := newUser()

	_, err := store.GetActiveIntegration(ctx, user, models.ProviderGmail)
	require.ErrorIs(t, err, models.ErrNotFound)

	expires := ts("2024-03-01T13:00:00Z")
	first := &models.Integration{
		ID:           uuid.New().String(),
		UserID:       user,
		Provider:     models.ProviderGmail,
		AccessToken:  "a-1",
		RefreshToken: "r-1",
		ExpiresAt:    &expires,
		IsActive:     true,
		Scope:        "gmail.readonly",
		Metadata:     models.JSONB{"token_type": "Bearer"},
		CreatedAt:    ts("2024-03-01T12:00:00Z"),
		UpdatedAt:    ts("2024-03-01T12:00:00Z"),
	}
	require.NoError(t, store.UpsertIntegration(ctx, first))

	got, err := store.GetActiveIntegration(ctx, user, models.ProviderGmail)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "a-1", got.AccessToken)
	assert.True(t, got.ExpiresAt.Equal(expires))
	assert.Equal(t, "Bearer", got.Metadata["token_type"])

	require.NoError(t, store.DeactivateIntegration(ctx, user, models.ProviderGmail))
	_, err = store.GetActiveIntegration(ctx, user, models.ProviderGmail)
	require.ErrorIs(t, err, models.ErrNotFound)
	inactive, err := store.FindIntegration(ctx, user, models.ProviderGmail)
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)

	// Replacing by (user, provider) reactivates the row without adding one
	second := *first
	second.ID = uuid.New().String()
	second.AccessToken = "a-2"
	second.IsActive = true
	require.NoError(t, store.UpsertIntegration(ctx, &second))

	got, err = store.GetActiveIntegration(ctx, user, models.ProviderGmail)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "a-2", got.AccessToken)

	require.ErrorIs(t, store.DeactivateIntegration(ctx, newUser(), models.ProviderGmail), models.ErrNotFound)
}

func testTokenCAS(t *testing.T, store service.Store) {
	ctx := context.Background()
	user := newUser()
	expires := ts("2024-03-01T13:00:00Z")
	integration := &models.Integration{
		ID:           uuid.New().String(),
		UserID:       user,
		Provider:     models.ProviderGoogleCalendar,
		AccessToken:  "old",
		RefreshToken: "r-1",
		ExpiresAt:    &expires,
		IsActive:     true,
		CreatedAt:    expires,
		UpdatedAt:    expires,
	}
	require.NoError(t, store.UpsertIntegration(ctx, integration))

	update := models.TokenUpdate{AccessToken: "new", RefreshToken: "r-2", ExpiresAt: ts("2024-03-01T14:00:00Z")}
	written, err := store.UpdateIntegrationTokens(ctx, integration.ID, &expires, update)
	require.NoError(t, err)
	assert.True(t, written)

	// The expiry moved on, so a second writer holding the old value loses
	written, err = store.UpdateIntegrationTokens(ctx, integration.ID, &expires, models.TokenUpdate{AccessToken: "late", ExpiresAt: ts("2024-03-01T15:00:00Z")})
	require.NoError(t, err)
	assert.False(t, written)

	got, err := store.GetActiveIntegration(ctx, user, models.ProviderGoogleCalendar)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "r-2", got.RefreshToken)
	assert.True(t, got.ExpiresAt.Equal(update.ExpiresAt))
}

func newEvent(user, providerID string, start time.Time, seriesID *string) *models.CalendarEvent {
	return &models.CalendarEvent{
		ID:          uuid.New().String(),
		UserID:      user,
		ProviderID:  strPtr(providerID),
		Provider:    models.ProviderGoogleCalendar,
		Source:      models.SourceProvider,
		Title:       "Standup",
		StartTime:   start,
		EndTime:     start.Add(15 * time.Minute),
		IsRecurring: seriesID != nil,
		SeriesID:    seriesID,
		Status:      "confirmed",
		CreatedAt:   start,
		UpdatedAt:   start,
	}
}

func testEvents(t *testing.T, store service.Store) {
	ctx := context.Background()
	user := newUser()
	event := newEvent(user, "ev-1", ts("2024-03-04T09:00:00Z"), nil)
	require.NoError(t, store.CreateEvent(ctx, event))

	dup := newEvent(user, "ev-1", ts("2024-03-04T09:00:00Z"), nil)
	require.ErrorIs(t, store.CreateEvent(ctx, dup), models.ErrDuplicateKey)

	// Same provider ID for a different user is a different record
	require.NoError(t, store.CreateEvent(ctx, newEvent(newUser(), "ev-1", ts("2024-03-04T09:00:00Z"), nil)))

	// Locally authored rows carry no provider ID and never collide
	local := newEvent(user, "", ts("2024-03-05T09:00:00Z"), nil)
	local.ProviderID = nil
	local.Source = models.SourceUser
	require.NoError(t, store.CreateEvent(ctx, local))
	local2 := newEvent(user, "", ts("2024-03-06T09:00:00Z"), nil)
	local2.ProviderID = nil
	require.NoError(t, store.CreateEvent(ctx, local2))

	event.Title = ""
	event.Description = "moved"
	event.IsAllDay = true
	event.UpdatedAt = ts("2024-03-04T10:00:00Z")
	require.NoError(t, store.UpdateEvent(ctx, event))

	got, err := store.FindEventByProviderID(ctx, user, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "", got.Title, "zero values are written")
	assert.Equal(t, "moved", got.Description)
	assert.True(t, got.IsAllDay)
	assert.True(t, got.StartTime.Equal(event.StartTime))

	missing := newEvent(user, "ev-missing", ts("2024-03-04T09:00:00Z"), nil)
	require.ErrorIs(t, store.UpdateEvent(ctx, missing), models.ErrNotFound)

	require.NoError(t, store.DeleteEventByProviderID(ctx, user, "ev-1"))
	_, err = store.FindEventByProviderID(ctx, user, "ev-1")
	require.ErrorIs(t, err, models.ErrNotFound)
	require.ErrorIs(t, store.DeleteEventByProviderID(ctx, user, "ev-1"), models.ErrNotFound)
}

func testEventSeries(t *testing.T, store service.Store) {
	ctx := context.Background()
	user := newUser()
	master := newEvent(user, "M", ts("2024-03-04T09:00:00Z"), nil)
	master.IsRecurring = true
	require.NoError(t, store.CreateEvent(ctx, master))
	for _, day := range []string{"04", "11", "18", "25"} {
		start := ts("2024-03-" + day + "T09:00:00Z")
		require.NoError(t, store.CreateEvent(ctx, newEvent(user, "M_"+day, start, strPtr("M"))))
	}
	require.NoError(t, store.CreateEvent(ctx, newEvent(user, "other", ts("2024-03-20T09:00:00Z"), nil)))

	occurrences, err := store.ListSeriesOccurrences(ctx, user, "M")
	require.NoError(t, err)
	require.Len(t, occurrences, 4, "master and unrelated rows are not occurrences")
	for i, day := range []string{"04", "11", "18", "25"} {
		assert.Equal(t, "M_"+day, *occurrences[i].ProviderID)
	}
	none, err := store.ListSeriesOccurrences(ctx, newUser(), "M")
	require.NoError(t, err)
	assert.Empty(t, none)

	from := ts("2024-03-18T09:00:00Z")
	removed, err := store.DeleteEventSeries(ctx, user, "M", &from)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = store.FindEventByProviderID(ctx, user, "M_11")
	require.NoError(t, err)
	_, err = store.FindEventByProviderID(ctx, user, "M_18")
	require.ErrorIs(t, err, models.ErrNotFound)

	removed, err = store.DeleteEventSeries(ctx, user, "M", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed, "master and remaining occurrences")

	_, err = store.FindEventByProviderID(ctx, user, "other")
	require.NoError(t, err)
}

func testEmails(t *testing.T, store service.Store) {
	ctx := context.Background()
	user := newUser()
	email := &models.Email{
		ID:         uuid.New().String(),
		UserID:     user,
		ProviderID: strPtr("msg-1"),
		Source:     models.SourceProvider,
		Subject:    "Invoice",
		Labels:     "INBOX,UNREAD",
		EmailType:  models.EmailTypeReceived,
		ReceivedAt: ts("2024-03-01T08:00:00Z"),
		CreatedAt:  ts("2024-03-01T08:00:00Z"),
		UpdatedAt:  ts("2024-03-01T08:00:00Z"),
	}
	require.NoError(t, store.CreateEmail(ctx, email))
	require.ErrorIs(t, store.CreateEmail(ctx, &models.Email{
		ID:         uuid.New().String(),
		UserID:     user,
		ProviderID: strPtr("msg-1"),
		ReceivedAt: ts("2024-03-01T08:00:00Z"),
	}), models.ErrDuplicateKey)

	email.IsRead = true
	email.Labels = "INBOX"
	require.NoError(t, store.UpdateEmail(ctx, email))

	got, err := store.FindEmailByProviderID(ctx, user, "msg-1")
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.Equal(t, "INBOX", got.Labels)
	assert.Equal(t, "Invoice", got.Subject)

	_, err = store.GetEmail(ctx, newUser(), email.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	attachment := &models.EmailAttachment{
		ID:                   uuid.New().String(),
		EmailID:              email.ID,
		ProviderAttachmentID: "att-1",
		Filename:             "invoice.pdf",
		MimeType:             "application/pdf",
		SizeBytes:            2048,
		CreatedAt:            ts("2024-03-01T08:00:00Z"),
	}
	require.NoError(t, store.CreateAttachment(ctx, attachment))
	require.ErrorIs(t, store.CreateAttachment(ctx, &models.EmailAttachment{
		ID:                   uuid.New().String(),
		EmailID:              email.ID,
		ProviderAttachmentID: "att-1",
		CreatedAt:            ts("2024-03-01T08:00:00Z"),
	}), models.ErrDuplicateKey)

	found, err := store.FindAttachment(ctx, email.ID, "att-1")
	require.NoError(t, err)
	assert.Equal(t, attachment.ID, found.ID)

	require.NoError(t, store.SetAttachmentData(ctx, attachment.ID, []byte("%PDF-1.7")))
	withData, err := store.GetAttachment(ctx, email.ID, attachment.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), withData.Data)

	_, err = store.FindAttachment(ctx, email.ID, "att-2")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func testTasks(t *testing.T, store service.Store) {
	ctx := context.Background()
	user := newUser()
	due := ts("2024-03-31T00:00:00Z")
	task := &models.Task{
		ID:        uuid.New().String(),
		UserID:    user,
		Source:    models.SourceUser,
		Title:     "Pay rent",
		DueAt:     &due,
		Priority:  "high",
		CreatedAt: ts("2024-03-01T08:00:00Z"),
		UpdatedAt: ts("2024-03-01T08:00:00Z"),
	}
	require.NoError(t, store.CreateTask(ctx, task))

	got, err := store.GetTask(ctx, user, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ProviderID)
	assert.Equal(t, "high", got.Priority)

	task.ProviderID = strPtr("t-1")
	task.Source = models.SourceProvider
	task.DueAt = nil
	require.NoError(t, store.UpdateTask(ctx, task))

	got, err = store.FindTaskByProviderID(ctx, user, "t-1")
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Nil(t, got.DueAt)

	require.ErrorIs(t, store.CreateTask(ctx, &models.Task{
		ID:         uuid.New().String(),
		UserID:     user,
		ProviderID: strPtr("t-1"),
	}), models.ErrDuplicateKey)
}
