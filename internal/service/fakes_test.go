package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vipul43/privatezone/internal/models"
)

// memStore is an in-memory Store that enforces the same uniqueness rules as
// the real backends. Values are copied in and out so tests see real writes only.
type memStore struct {
	mu           sync.Mutex
	integrations map[string]models.Integration
	events       map[string]models.CalendarEvent
	emails       map[string]models.Email
	attachments  map[string]models.EmailAttachment
	tasks        map[string]models.Task

	writes int

	// beforeCreate runs once, unlocked, ahead of the next Create* call
	beforeCreate func()
	// updateTaskErr fails every UpdateTask call when set
	updateTaskErr error
}

func newMemStore() *memStore {
	return &memStore{
		integrations: map[string]models.Integration{},
		events:       map[string]models.CalendarEvent{},
		emails:       map[string]models.Email{},
		attachments:  map[string]models.EmailAttachment{},
		tasks:        map[string]models.Task{},
	}
}

func (s *memStore) runBeforeCreate() {
	if hook := s.beforeCreate; hook != nil {
		s.beforeCreate = nil
		hook()
	}
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func sameProviderID(userA, userB string, a, b *string) bool {
	return userA == userB && a != nil && b != nil && *a == *b
}

// Integrations

func (s *memStore) GetActiveIntegration(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.integrations {
		if i.UserID == userID && i.Provider == provider && i.IsActive {
			i := i
			return &i, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) FindIntegration(ctx context.Context, userID string, provider models.Provider) (*models.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.integrations {
		if i.UserID == userID && i.Provider == provider {
			i := i
			return &i, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) UpsertIntegration(ctx context.Context, integration *models.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, i := range s.integrations {
		if i.UserID == integration.UserID && i.Provider == integration.Provider && id != integration.ID {
			delete(s.integrations, id)
		}
	}
	s.integrations[integration.ID] = *integration
	s.writes++
	return nil
}

func (s *memStore) UpdateIntegrationTokens(ctx context.Context, integrationID string, expectedExpiry *time.Time, update models.TokenUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.integrations[integrationID]
	if !ok {
		return false, nil
	}
	if !equalTimePtr(i.ExpiresAt, expectedExpiry) {
		return false, nil
	}
	expiresAt := update.ExpiresAt
	i.AccessToken = update.AccessToken
	i.RefreshToken = update.RefreshToken
	i.ExpiresAt = &expiresAt
	s.integrations[integrationID] = i
	s.writes++
	return true, nil
}

func (s *memStore) DeactivateIntegration(ctx context.Context, userID string, provider models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, i := range s.integrations {
		if i.UserID == userID && i.Provider == provider {
			i.IsActive = false
			s.integrations[id] = i
			s.writes++
			return nil
		}
	}
	return models.ErrNotFound
}

// Events

func (s *memStore) FindEventByProviderID(ctx context.Context, userID, providerID string) (*models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if sameProviderID(e.UserID, userID, e.ProviderID, &providerID) {
			e := e
			return &e, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) CreateEvent(ctx context.Context, event *models.CalendarEvent) error {
	s.runBeforeCreate()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if sameProviderID(e.UserID, event.UserID, e.ProviderID, event.ProviderID) {
			return models.ErrDuplicateKey
		}
	}
	s.events[event.ID] = *event
	s.writes++
	return nil
}

func (s *memStore) UpdateEvent(ctx context.Context, event *models.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		return models.ErrNotFound
	}
	s.events[event.ID] = *event
	s.writes++
	return nil
}

func (s *memStore) DeleteEventByProviderID(ctx context.Context, userID, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.events {
		if sameProviderID(e.UserID, userID, e.ProviderID, &providerID) {
			delete(s.events, id)
			s.writes++
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *memStore) DeleteEventSeries(ctx context.Context, userID, seriesID string, from *time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.events {
		if e.UserID != userID {
			continue
		}
		inSeries := e.SeriesID != nil && *e.SeriesID == seriesID
		isMaster := e.ProviderID != nil && *e.ProviderID == seriesID
		if from != nil {
			if !inSeries || e.StartTime.Before(*from) {
				continue
			}
		} else if !inSeries && !isMaster {
			continue
		}
		delete(s.events, id)
		n++
	}
	s.writes++
	return n, nil
}

func (s *memStore) ListSeriesOccurrences(ctx context.Context, userID, seriesID string) ([]models.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CalendarEvent
	for _, e := range s.events {
		if e.UserID == userID && e.SeriesID != nil && *e.SeriesID == seriesID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *memStore) eventsByProviderID() map[string]models.CalendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]models.CalendarEvent{}
	for _, e := range s.events {
		if e.ProviderID != nil {
			out[*e.ProviderID] = e
		}
	}
	return out
}

// Emails

func (s *memStore) FindEmailByProviderID(ctx context.Context, userID, providerID string) (*models.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.emails {
		if sameProviderID(e.UserID, userID, e.ProviderID, &providerID) {
			e := e
			return &e, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) GetEmail(ctx context.Context, userID, emailID string) (*models.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.emails[emailID]
	if !ok || e.UserID != userID {
		return nil, models.ErrNotFound
	}
	return &e, nil
}

func (s *memStore) CreateEmail(ctx context.Context, email *models.Email) error {
	s.runBeforeCreate()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.emails {
		if sameProviderID(e.UserID, email.UserID, e.ProviderID, email.ProviderID) {
			return models.ErrDuplicateKey
		}
	}
	s.emails[email.ID] = *email
	s.writes++
	return nil
}

func (s *memStore) UpdateEmail(ctx context.Context, email *models.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[email.ID]; !ok {
		return models.ErrNotFound
	}
	s.emails[email.ID] = *email
	s.writes++
	return nil
}

func (s *memStore) FindAttachment(ctx context.Context, emailID, providerAttachmentID string) (*models.EmailAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attachments {
		if a.EmailID == emailID && a.ProviderAttachmentID == providerAttachmentID {
			a := a
			return &a, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) GetAttachment(ctx context.Context, emailID, attachmentID string) (*models.EmailAttachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attachments[attachmentID]
	if !ok || a.EmailID != emailID {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

func (s *memStore) CreateAttachment(ctx context.Context, attachment *models.EmailAttachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attachments {
		if a.EmailID == attachment.EmailID && a.ProviderAttachmentID == attachment.ProviderAttachmentID {
			return models.ErrDuplicateKey
		}
	}
	s.attachments[attachment.ID] = *attachment
	s.writes++
	return nil
}

func (s *memStore) SetAttachmentData(ctx context.Context, attachmentID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attachments[attachmentID]
	if !ok {
		return models.ErrNotFound
	}
	a.Data = data
	s.attachments[attachmentID] = a
	s.writes++
	return nil
}

// Tasks

func (s *memStore) FindTaskByProviderID(ctx context.Context, userID, providerID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if sameProviderID(t.UserID, userID, t.ProviderID, &providerID) {
			t := t
			return &t, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (s *memStore) CreateTask(ctx context.Context, task *models.Task) error {
	s.runBeforeCreate()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if sameProviderID(t.UserID, task.UserID, t.ProviderID, task.ProviderID) {
			return models.ErrDuplicateKey
		}
	}
	s.tasks[task.ID] = *task
	s.writes++
	return nil
}

func (s *memStore) UpdateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateTaskErr != nil {
		return s.updateTaskErr
	}
	if _, ok := s.tasks[task.ID]; !ok {
		return models.ErrNotFound
	}
	s.tasks[task.ID] = *task
	s.writes++
	return nil
}

var _ Store = (*memStore)(nil)

// staticTokens is a TokenSource that always returns the same answer
type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken(ctx context.Context, userID string, provider models.Provider) (string, error) {
	return s.token, s.err
}

type mockCalendar struct {
	listEventsFunc     func(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error)
	getEventFunc       func(ctx context.Context, accessToken, eventID string) (*RemoteEvent, error)
	createEventFunc    func(ctx context.Context, accessToken string, input EventInput) (*RemoteEvent, error)
	updateEventFunc    func(ctx context.Context, accessToken, eventID string, input EventInput) (*RemoteEvent, error)
	deleteEventFunc    func(ctx context.Context, accessToken, eventID string) error
	truncateSeriesFunc func(ctx context.Context, accessToken, masterID string, cutoff time.Time) error
}

func (m *mockCalendar) ListEvents(ctx context.Context, accessToken string, start, end time.Time) ([]RemoteEvent, error) {
	if m.listEventsFunc != nil {
		return m.listEventsFunc(ctx, accessToken, start, end)
	}
	return nil, nil
}

func (m *mockCalendar) GetEvent(ctx context.Context, accessToken, eventID string) (*RemoteEvent, error) {
	if m.getEventFunc != nil {
		return m.getEventFunc(ctx, accessToken, eventID)
	}
	return nil, ErrEventNotFound
}

func (m *mockCalendar) CreateEvent(ctx context.Context, accessToken string, input EventInput) (*RemoteEvent, error) {
	if m.createEventFunc != nil {
		return m.createEventFunc(ctx, accessToken, input)
	}
	return nil, nil
}

func (m *mockCalendar) UpdateEvent(ctx context.Context, accessToken, eventID string, input EventInput) (*RemoteEvent, error) {
	if m.updateEventFunc != nil {
		return m.updateEventFunc(ctx, accessToken, eventID, input)
	}
	return nil, nil
}

func (m *mockCalendar) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	if m.deleteEventFunc != nil {
		return m.deleteEventFunc(ctx, accessToken, eventID)
	}
	return nil
}

func (m *mockCalendar) TruncateSeries(ctx context.Context, accessToken, masterID string, cutoff time.Time) error {
	if m.truncateSeriesFunc != nil {
		return m.truncateSeriesFunc(ctx, accessToken, masterID, cutoff)
	}
	return nil
}

type mockMail struct {
	listMessagesFunc  func(ctx context.Context, accessToken, query string, limit int) ([]RemoteMessage, error)
	getAttachmentFunc func(ctx context.Context, accessToken, messageID, attachmentID string) ([]byte, error)
}

func (m *mockMail) ListMessages(ctx context.Context, accessToken, query string, limit int) ([]RemoteMessage, error) {
	if m.listMessagesFunc != nil {
		return m.listMessagesFunc(ctx, accessToken, query, limit)
	}
	return nil, nil
}

func (m *mockMail) GetAttachment(ctx context.Context, accessToken, messageID, attachmentID string) ([]byte, error) {
	if m.getAttachmentFunc != nil {
		return m.getAttachmentFunc(ctx, accessToken, messageID, attachmentID)
	}
	return nil, nil
}

type mockTasks struct {
	listTasksFunc  func(ctx context.Context, accessToken string) ([]RemoteTask, error)
	insertTaskFunc func(ctx context.Context, accessToken string, task RemoteTask) (*RemoteTask, error)
}

func (m *mockTasks) ListTasks(ctx context.Context, accessToken string) ([]RemoteTask, error) {
	if m.listTasksFunc != nil {
		return m.listTasksFunc(ctx, accessToken)
	}
	return nil, nil
}

func (m *mockTasks) InsertTask(ctx context.Context, accessToken string, task RemoteTask) (*RemoteTask, error) {
	if m.insertTaskFunc != nil {
		return m.insertTaskFunc(ctx, accessToken, task)
	}
	return nil, nil
}

type mockRefresher struct {
	mu               sync.Mutex
	calls            int
	refreshTokenFunc func(ctx context.Context, refreshToken string) (*TokenRefreshResult, error)
}

func (m *mockRefresher) RefreshToken(ctx context.Context, refreshToken string) (*TokenRefreshResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.refreshTokenFunc != nil {
		return m.refreshTokenFunc(ctx, refreshToken)
	}
	return nil, nil
}

func (m *mockRefresher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func strPtr(s string) *string { return &s }
