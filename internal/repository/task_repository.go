package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vipul43/privatezone/internal/models"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) FindTaskByProviderID(ctx context.Context, userID, providerID string) (*models.Task, error) {
	var task models.Task
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, providerID).
		First(&task)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &task, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	var task models.Task
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", taskID, userID).
		First(&task)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &task, nil
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	return translate(r.db.WithContext(ctx).Create(task).Error)
}

func (r *TaskRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", task.ID).
		Select("*").Omit("id", "created_at").
		Updates(task)
	if result.Error != nil {
		return fmt.Errorf("failed to update task: %w", translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}
