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

// TaskSync mirrors the default Google Tasks list and pushes local tasks to it
type TaskSync struct {
	tokens TokenSource
	store  TaskStore
	tasks  TaskProvider
	now    func() time.Time
	logger *zap.Logger
}

func NewTaskSync(tokens TokenSource, store TaskStore, tasks TaskProvider, logger *zap.Logger) *TaskSync {
	return &TaskSync{
		tokens: tokens,
		store:  store,
		tasks:  tasks,
		now:    time.Now,
		logger: logger,
	}
}

// SyncTasks fetches the whole remote list and upserts every task.
// Priority is never touched since providers do not carry it.
func (s *TaskSync) SyncTasks(ctx context.Context, userID string) (*SyncResult, error) {
	token, err := s.tokens.AccessToken(ctx, userID, models.ProviderGoogleTasks)
	if err != nil {
		return nil, err
	}

	remote, err := s.tasks.ListTasks(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	log := s.logger.With(zap.String("user_id", userID), zap.String("provider", string(models.ProviderGoogleTasks)))

	result, err := reconcile(ctx, log, remote,
		func(t RemoteTask) string { return t.ID },
		func(ctx context.Context, t RemoteTask) (outcome, error) {
			return s.upsertTask(ctx, userID, t)
		},
	)
	if err != nil {
		return result, err
	}

	log.Info("task sync complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *TaskSync) upsertTask(ctx context.Context, userID string, remote RemoteTask) (outcome, error) {
	fields, err := normalizeTask(remote)
	if err != nil {
		return 0, err
	}

	existing, err := s.store.FindTaskByProviderID(ctx, userID, remote.ID)
	if err == nil {
		return s.updateTask(ctx, existing, fields)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return 0, fmt.Errorf("failed to find task: %w", err)
	}

	now := s.now()
	providerID := remote.ID
	task := &models.Task{
		ID:         uuid.New().String(),
		UserID:     userID,
		ProviderID: &providerID,
		Source:     models.SourceProvider,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	fields.applyTo(task)

	if err := s.store.CreateTask(ctx, task); err != nil {
		if !errors.Is(err, models.ErrDuplicateKey) {
			return 0, fmt.Errorf("failed to create task: %w", err)
		}
		existing, err := s.store.FindTaskByProviderID(ctx, userID, remote.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to re-read task after conflict: %w", err)
		}
		return s.updateTask(ctx, existing, fields)
	}
	return outcomeCreated, nil
}

func (s *TaskSync) updateTask(ctx context.Context, task *models.Task, fields taskFields) (outcome, error) {
	if fields.matches(task) {
		return outcomeUnchanged, nil
	}
	fields.applyTo(task)
	task.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return 0, fmt.Errorf("failed to update task: %w", err)
	}
	return outcomeUpdated, nil
}

// PushTask creates a locally authored task on the remote list and links the two
func (s *TaskSync) PushTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task.ProviderID != nil {
		return nil, ErrTaskAlreadyLinked
	}

	token, err := s.tokens.AccessToken(ctx, userID, models.ProviderGoogleTasks)
	if err != nil {
		return nil, err
	}

	remote := RemoteTask{
		Title:  task.Title,
		Notes:  task.Notes,
		Status: TaskStatusNeedsAction,
	}
	if task.Completed {
		remote.Status = TaskStatusCompleted
	}
	if task.DueAt != nil {
		remote.Due = task.DueAt.UTC().Format(time.RFC3339)
	}

	created, err := s.tasks.InsertTask(ctx, token, remote)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	providerID := created.ID
	task.ProviderID = &providerID
	task.Source = models.SourceProvider
	task.UpdatedAt = s.now()
	if err := s.store.UpdateTask(ctx, task); err != nil {
		// The remote task already exists, so its ID must not be lost
		s.logger.Error("task pushed but local link not saved",
			zap.String("user_id", userID),
			zap.String("task_id", task.ID),
			zap.String("provider_id", providerID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to link task %s to provider task %s: %w", task.ID, providerID, err)
	}

	s.logger.Info("task pushed to provider",
		zap.String("user_id", userID),
		zap.String("task_id", task.ID),
		zap.String("provider_id", providerID))
	return task, nil
}

// taskFields are the provider-authoritative columns of a Task
type taskFields struct {
	title       string
	notes       string
	completed   bool
	completedAt *time.Time
	due         *time.Time
}

func normalizeTask(remote RemoteTask) (taskFields, error) {
	if remote.ID == "" {
		return taskFields{}, fmt.Errorf("%w: task has no id", ErrMalformedRecord)
	}

	f := taskFields{
		title:     strings.TrimSpace(remote.Title),
		notes:     remote.Notes,
		completed: remote.Status == TaskStatusCompleted,
	}

	if remote.Due != "" {
		due, err := time.Parse(time.RFC3339, remote.Due)
		if err != nil {
			return taskFields{}, fmt.Errorf("%w: task %s due: %v", ErrMalformedRecord, remote.ID, err)
		}
		due = due.UTC()
		f.due = &due
	}
	if f.completed && remote.Completed != "" {
		at, err := time.Parse(time.RFC3339, remote.Completed)
		if err != nil {
			return taskFields{}, fmt.Errorf("%w: task %s completed: %v", ErrMalformedRecord, remote.ID, err)
		}
		at = at.UTC()
		f.completedAt = &at
	}
	return f, nil
}

func (f taskFields) matches(t *models.Task) bool {
	return t.Title == f.title &&
		t.Notes == f.notes &&
		t.Completed == f.completed &&
		equalTimePtr(t.CompletedAt, f.completedAt) &&
		equalTimePtr(t.DueAt, f.due)
}

func (f taskFields) applyTo(t *models.Task) {
	t.Title = f.title
	t.Notes = f.notes
	t.Completed = f.completed
	t.CompletedAt = f.completedAt
	t.DueAt = f.due
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
