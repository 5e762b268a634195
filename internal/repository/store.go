package repository

import "gorm.io/gorm"

// Store is the Postgres implementation of service.Store
type Store struct {
	*IntegrationRepository
	*EventRepository
	*EmailRepository
	*TaskRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		IntegrationRepository: NewIntegrationRepository(db),
		EventRepository:       NewEventRepository(db),
		EmailRepository:       NewEmailRepository(db),
		TaskRepository:        NewTaskRepository(db),
	}
}
