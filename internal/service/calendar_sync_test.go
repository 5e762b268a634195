package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vipul43/privatezone/internal/models"
)

func threeEvents() []RemoteEvent {
	return []RemoteEvent{
		{ID: "ev-1", Title: "Standup", Start: "2024-03-04T09:00:00Z", End: "2024-03-04T09:15:00Z"},
		{ID: "ev-2", Title: "Planning", Start: "2024-03-05T10:00:00+01:00", End: "2024-03-05T11:00:00+01:00"},
		{ID: "ev-3", Title: "Holiday", Start: "2024-03-08", End: "2024-03-09", AllDay: true},
	}
}

func newTestCalendarSync(store *memStore, cal *mockCalendar, logger *zap.Logger) *CalendarSync {
	s := NewCalendarSync(staticTokens{token: "access"}, store, map[models.Provider]CalendarProvider{
		models.ProviderGoogleCalendar: cal,
	}, logger)
	s.now = func() time.Time { return baseTime }
	return s
}

func TestCalendarSync_ScenarioA_InsertsAll(t *testing.T) {
	store := newMemStore()
	cal := &mockCalendar{
		listEventsFunc: func(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error) {
			assert.Equal(t, "access", accessToken)
			return threeEvents(), nil
		},
	}

	result, err := newTestCalendarSync(store, cal, zap.NewNop()).SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 3, result.SyncedCount())

	byID := store.eventsByProviderID()
	require.Len(t, byID, 3)
	for _, id := range []string{"ev-1", "ev-2", "ev-3"} {
		ev, ok := byID[id]
		require.True(t, ok, id)
		assert.Equal(t, models.SourceProvider, ev.Source)
		assert.Equal(t, models.ProviderGoogleCalendar, ev.Provider)
		assert.Equal(t, "user-1", ev.UserID)
	}

	assert.True(t, byID["ev-2"].StartTime.Equal(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)))
	assert.True(t, byID["ev-3"].IsAllDay)
	assert.True(t, byID["ev-3"].StartTime.Equal(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)))
}

func TestCalendarSync_ScenarioB_UpdatesOnlyChanged(t *testing.T) {
	store := newMemStore()
	remote := threeEvents()
	cal := &mockCalendar{
		listEventsFunc: func(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error) {
			return remote, nil
		},
	}
	s := newTestCalendarSync(store, cal, zap.NewNop())

	_, err := s.SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	require.NoError(t, err)
	before := store.eventsByProviderID()

	later := baseTime.Add(time.Hour)
	s.mirror.now = func() time.Time { return later }
	remote[1].Title = "Sprint planning"

	result, err := s.SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Unchanged)

	after := store.eventsByProviderID()
	assert.Equal(t, "Sprint planning", after["ev-2"].Title)
	assert.True(t, after["ev-2"].UpdatedAt.Equal(later))
	assert.Equal(t, before["ev-1"], after["ev-1"])
	assert.Equal(t, before["ev-3"], after["ev-3"])
	assert.Equal(t, before["ev-2"].ID, after["ev-2"].ID)
}

func TestCalendarSync_Idempotent(t *testing.T) {
	store := newMemStore()
	cal := &mockCalendar{
		listEventsFunc: func(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error) {
			return threeEvents(), nil
		},
	}
	s := newTestCalendarSync(store, cal, zap.NewNop())

	_, err := s.SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	require.NoError(t, err)
	snapshot := store.eventsByProviderID()
	writes := store.writeCount()

	result, err := s.SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Unchanged)
	assert.Equal(t, writes, store.writeCount(), "second pass must not write")
	assert.Equal(t, snapshot, store.eventsByProviderID())
}

func TestCalendarSync_FaultIsolation(t *testing.T) {
	store := newMemStore()
	remote := threeEvents()
	remote = append(remote,
		RemoteEvent{ID: "ev-bad", Title: "Broken", Start: "next tuesday"},
		RemoteEvent{ID: "ev-5", Start: "2024-03-10T08:00:00Z", End: "2024-03-10T09:00:00Z"},
	)
	cal := &mockCalendar{
		listEventsFunc: func(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error) {
			return remote, nil
		},
	}
	core, logs := observer.New(zapcore.WarnLevel)

	result, err := newTestCalendarSync(store, cal, zap.New(core)).SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Fetched)
	assert.Equal(t, 4, result.SyncedCount())
	assert.Equal(t, 1, result.Skipped)
	assert.ErrorIs(t, result.Errors, ErrMalformedRecord)
	assert.Len(t, multierr.Errors(result.Errors), 1)

	skipped := logs.FilterMessage("skipping malformed record").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "ev-bad", skipped[0].ContextMap()["provider_id"])

	assert.Equal(t, UntitledEvent, store.eventsByProviderID()["ev-5"].Title)
}

func TestCalendarSync_UnsupportedProvider(t *testing.T) {
	s := newTestCalendarSync(newMemStore(), &mockCalendar{}, zap.NewNop())
	_, err := s.SyncCalendar(context.Background(), "user-1", models.ProviderGmail, Window{})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestCalendarSync_DefaultWindow(t *testing.T) {
	var gotStart, gotEnd time.Time
	cal := &mockCalendar{
		listEventsFunc: func(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error) {
			gotStart, gotEnd = start, end
			return nil, nil
		},
	}

	_, err := newTestCalendarSync(newMemStore(), cal, zap.NewNop()).SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	require.NoError(t, err)
	assert.True(t, gotStart.Equal(baseTime))
	assert.True(t, gotEnd.Equal(baseTime.AddDate(0, 0, DefaultCalendarSyncDays)))
}

func TestCalendarSync_InvalidWindow(t *testing.T) {
	s := newTestCalendarSync(newMemStore(), &mockCalendar{}, zap.NewNop())
	_, err := s.SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{
		Start: baseTime,
		End:   baseTime.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestCalendarSync_FetchFailureWritesNothing(t *testing.T) {
	store := newMemStore()
	cal := &mockCalendar{
		listEventsFunc: func(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error) {
			return nil, errors.New("503 backend error")
		},
	}

	_, err := newTestCalendarSync(store, cal, zap.NewNop()).SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, 0, store.writeCount())
}

func TestCalendarSync_TokenErrorPassedThrough(t *testing.T) {
	s := NewCalendarSync(staticTokens{err: ErrReauthorizationRequired}, newMemStore(), map[models.Provider]CalendarProvider{
		models.ProviderGoogleCalendar: &mockCalendar{},
	}, zap.NewNop())

	_, err := s.SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	assert.ErrorIs(t, err, ErrReauthorizationRequired)
}

func TestCalendarSync_DuplicateInsertBecomesUpdate(t *testing.T) {
	store := newMemStore()
	cal := &mockCalendar{
		listEventsFunc: func(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error) {
			return threeEvents()[:1], nil
		},
	}
	// A concurrent sync lands the same event between our lookup and insert
	store.beforeCreate = func() {
		require.NoError(t, store.CreateEvent(context.Background(), &models.CalendarEvent{
			ID:         "competitor",
			UserID:     "user-1",
			ProviderID: strPtr("ev-1"),
			Title:      "stale",
		}))
	}

	result, err := newTestCalendarSync(store, cal, zap.NewNop()).SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	events := store.eventsByProviderID()
	require.Len(t, events, 1)
	assert.Equal(t, "competitor", events["ev-1"].ID)
	assert.Equal(t, "Standup", events["ev-1"].Title)
}

func TestCalendarSync_StoreErrorAborts(t *testing.T) {
	store := &failingEventStore{memStore: newMemStore(), err: errors.New("disk full")}
	cal := &mockCalendar{
		listEventsFunc: func(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error) {
			return threeEvents(), nil
		},
	}
	s := NewCalendarSync(staticTokens{token: "access"}, store, map[models.Provider]CalendarProvider{
		models.ProviderGoogleCalendar: cal,
	}, zap.NewNop())

	result, err := s.SyncCalendar(context.Background(), "user-1", models.ProviderGoogleCalendar, Window{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedRecord)
	assert.Equal(t, 0, result.Created)
}

type failingEventStore struct {
	*memStore
	err error
}

func (s *failingEventStore) CreateEvent(ctx context.Context, event *models.CalendarEvent) error {
	return s.err
}

func TestNormalizeEvent(t *testing.T) {
	tests := []struct {
		name    string
		remote  RemoteEvent
		wantErr bool
	}{
		{name: "timed", remote: RemoteEvent{ID: "a", Start: "2024-03-04T09:00:00Z", End: "2024-03-04T10:00:00Z"}},
		{name: "graph utc without offset", remote: RemoteEvent{ID: "a", Start: "2024-03-04T09:00:00.0000000", End: "2024-03-04T10:00:00.0000000"}},
		{name: "all day", remote: RemoteEvent{ID: "a", Start: "2024-03-04", End: "2024-03-05", AllDay: true}},
		{name: "missing end uses start", remote: RemoteEvent{ID: "a", Start: "2024-03-04T09:00:00Z"}},
		{name: "missing id", remote: RemoteEvent{Start: "2024-03-04T09:00:00Z"}, wantErr: true},
		{name: "missing start", remote: RemoteEvent{ID: "a"}, wantErr: true},
		{name: "bad end", remote: RemoteEvent{ID: "a", Start: "2024-03-04T09:00:00Z", End: "soon"}, wantErr: true},
		{name: "end before start", remote: RemoteEvent{ID: "a", Start: "2024-03-04T09:00:00Z", End: "2024-03-04T08:00:00Z"}, wantErr: true},
		{name: "all day with datetime", remote: RemoteEvent{ID: "a", Start: "2024-03-04T09:00:00Z", AllDay: true}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeEvent(tt.remote)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRecord)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNormalizeEvent_Recurrence(t *testing.T) {
	f, err := normalizeEvent(RemoteEvent{
		ID:               "inst-1",
		Start:            "2024-03-04T09:00:00Z",
		RecurringEventID: "master-1",
	})
	require.NoError(t, err)
	assert.True(t, f.recurring)
	require.NotNil(t, f.seriesID)
	assert.Equal(t, "master-1", *f.seriesID)

	f, err = normalizeEvent(RemoteEvent{
		ID:         "master-1",
		Start:      "2024-03-04T09:00:00Z",
		Recurrence: []string{"RRULE:FREQ=DAILY", "EXDATE:20240306T090000Z"},
	})
	require.NoError(t, err)
	assert.True(t, f.recurring)
	assert.Nil(t, f.seriesID)
	assert.Equal(t, "RRULE:FREQ=DAILY\nEXDATE:20240306T090000Z", f.recurrence)
}
