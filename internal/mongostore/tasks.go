package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/vipul43/privatezone/internal/models"
)

func (s *Store) FindTaskByProviderID(ctx context.Context, userID, providerID string) (*models.Task, error) {
	var task models.Task
	if err := s.findOne(ctx, s.tasks, bson.M{"user_id": userID, "provider_id": providerID}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *Store) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	var task models.Task
	if err := s.findOne(ctx, s.tasks, bson.M{"_id": taskID, "user_id": userID}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *Store) CreateTask(ctx context.Context, task *models.Task) error {
	return s.insert(ctx, s.tasks, task)
}

func (s *Store) UpdateTask(ctx context.Context, task *models.Task) error {
	return s.replace(ctx, s.tasks, task.ID, task)
}
