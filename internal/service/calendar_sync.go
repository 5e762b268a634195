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
	DefaultCalendarSyncDays = 90
	UntitledEvent           = "Untitled Event"
	eventStatusConfirmed    = "confirmed"
)

// Window bounds a calendar sync. Zero values fall back to the defaults.
type Window struct {
	Start time.Time
	End   time.Time
}

// CalendarSync mirrors remote calendar events into the local store
type CalendarSync struct {
	tokens    TokenSource
	mirror    *eventMirror
	providers map[models.Provider]CalendarProvider
	syncDays  int
	now       func() time.Time
	logger    *zap.Logger
}

func NewCalendarSync(tokens TokenSource, store EventStore, providers map[models.Provider]CalendarProvider, logger *zap.Logger) *CalendarSync {
	return &CalendarSync{
		tokens:    tokens,
		mirror:    newEventMirror(store),
		providers: providers,
		syncDays:  DefaultCalendarSyncDays,
		now:       time.Now,
		logger:    logger,
	}
}

// SetSyncDays changes the default window length
func (s *CalendarSync) SetSyncDays(days int) {
	if days > 0 {
		s.syncDays = days
	}
}

// SyncCalendar fetches every event in window from provider and upserts it
// locally. Running it twice against unchanged remote data writes nothing.
func (s *CalendarSync) SyncCalendar(ctx context.Context, userID string, provider models.Provider, window Window) (*SyncResult, error) {
	calendar, ok := s.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	if window.Start.IsZero() {
		window.Start = s.now()
	}
	if window.End.IsZero() {
		window.End = window.Start.AddDate(0, 0, s.syncDays)
	}
	if !window.End.After(window.Start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidWindow, window.End, window.Start)
	}

	token, err := s.tokens.AccessToken(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	events, err := calendar.ListEvents(ctx, token, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	log := s.logger.With(zap.String("user_id", userID), zap.String("provider", string(provider)))
	log.Debug("fetched calendar events", zap.Int("count", len(events)))

	result, err := reconcile(ctx, log, events,
		func(e RemoteEvent) string { return e.ID },
		func(ctx context.Context, e RemoteEvent) (outcome, error) {
			_, out, err := s.mirror.upsert(ctx, userID, provider, e)
			return out, err
		},
	)
	if err != nil {
		return result, err
	}

	log.Info("calendar sync complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// eventMirror is the single upsert path for provider events, shared by sync and edits
type eventMirror struct {
	store EventStore
	now   func() time.Time
}

func newEventMirror(store EventStore) *eventMirror {
	return &eventMirror{store: store, now: time.Now}
}

func (m *eventMirror) upsert(ctx context.Context, userID string, provider models.Provider, remote RemoteEvent) (*models.CalendarEvent, outcome, error) {
	fields, err := normalizeEvent(remote)
	if err != nil {
		return nil, 0, err
	}

	existing, err := m.store.FindEventByProviderID(ctx, userID, remote.ID)
	if err == nil {
		return m.update(ctx, existing, fields)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, 0, fmt.Errorf("failed to find event: %w", err)
	}

	now := m.now()
	providerID := remote.ID
	event := &models.CalendarEvent{
		ID:         uuid.New().String(),
		UserID:     userID,
		ProviderID: &providerID,
		Provider:   provider,
		Source:     models.SourceProvider,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	fields.applyTo(event)

	if err := m.store.CreateEvent(ctx, event); err != nil {
		if !errors.Is(err, models.ErrDuplicateKey) {
			return nil, 0, fmt.Errorf("failed to create event: %w", err)
		}
		// A concurrent sync inserted it first
		existing, err := m.store.FindEventByProviderID(ctx, userID, remote.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to re-read event after conflict: %w", err)
		}
		return m.update(ctx, existing, fields)
	}
	return event, outcomeCreated, nil
}

func (m *eventMirror) update(ctx context.Context, event *models.CalendarEvent, fields eventFields) (*models.CalendarEvent, outcome, error) {
	if fields.matches(event) {
		return event, outcomeUnchanged, nil
	}
	fields.applyTo(event)
	event.UpdatedAt = m.now()
	if err := m.store.UpdateEvent(ctx, event); err != nil {
		return nil, 0, fmt.Errorf("failed to update event: %w", err)
	}
	return event, outcomeUpdated, nil
}

// eventFields are the provider-authoritative columns of a CalendarEvent
type eventFields struct {
	title       string
	description string
	location    string
	start       time.Time
	end         time.Time
	allDay      bool
	recurring   bool
	seriesID    *string
	recurrence  string
	status      string
}

func normalizeEvent(remote RemoteEvent) (eventFields, error) {
	if remote.ID == "" {
		return eventFields{}, fmt.Errorf("%w: event has no id", ErrMalformedRecord)
	}

	start, err := parseEventTime(remote.Start, remote.AllDay)
	if err != nil {
		return eventFields{}, fmt.Errorf("%w: event %s start: %v", ErrMalformedRecord, remote.ID, err)
	}
	end := start
	if remote.End != "" {
		if end, err = parseEventTime(remote.End, remote.AllDay); err != nil {
			return eventFields{}, fmt.Errorf("%w: event %s end: %v", ErrMalformedRecord, remote.ID, err)
		}
	}
	if end.Before(start) {
		return eventFields{}, fmt.Errorf("%w: event %s ends before it starts", ErrMalformedRecord, remote.ID)
	}

	f := eventFields{
		title:       strings.TrimSpace(remote.Title),
		description: remote.Description,
		location:    remote.Location,
		start:       start,
		end:         end,
		allDay:      remote.AllDay,
		recurring:   remote.Recurring || remote.RecurringEventID != "" || len(remote.Recurrence) > 0,
		recurrence:  strings.Join(remote.Recurrence, "\n"),
		status:      remote.Status,
	}
	if f.title == "" {
		f.title = UntitledEvent
	}
	if f.status == "" {
		f.status = eventStatusConfirmed
	}
	if remote.RecurringEventID != "" {
		seriesID := remote.RecurringEventID
		f.seriesID = &seriesID
	}
	return f, nil
}

// parseEventTime reads a date (all-day) or a date-time. Date-times without
// an offset are taken as UTC.
func parseEventTime(v string, allDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	if allDay {
		return time.Parse(time.DateOnly, v)
	}

	var lastErr error
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.9999999", time.DateTime} {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (f eventFields) matches(e *models.CalendarEvent) bool {
	return e.Title == f.title &&
		e.Description == f.description &&
		e.Location == f.location &&
		e.StartTime.Equal(f.start) &&
		e.EndTime.Equal(f.end) &&
		e.IsAllDay == f.allDay &&
		e.IsRecurring == f.recurring &&
		equalStringPtr(e.SeriesID, f.seriesID) &&
		e.Recurrence == f.recurrence &&
		e.Status == f.status
}

func (f eventFields) applyTo(e *models.CalendarEvent) {
	e.Title = f.title
	e.Description = f.description
	e.Location = f.location
	e.StartTime = f.start
	e.EndTime = f.end
	e.IsAllDay = f.allDay
	e.IsRecurring = f.recurring
	e.SeriesID = f.seriesID
	e.Recurrence = f.recurrence
	e.Status = f.status
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
