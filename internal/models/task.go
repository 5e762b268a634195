package models

import "time"

// Task mirrors one remote task, or a task the user created locally.
type Task struct {
	ID          string     `gorm:"column:id;primaryKey" bson:"_id"`
	UserID      string     `gorm:"column:user_id;index" bson:"user_id"`
	ProviderID  *string    `gorm:"column:provider_id" bson:"provider_id,omitempty"`
	Source      Source     `gorm:"column:source" bson:"source"`
	Title       string     `gorm:"column:title" bson:"title"`
	Notes       string     `gorm:"column:notes" bson:"notes"`
	Completed   bool       `gorm:"column:completed" bson:"completed"`
	CompletedAt *time.Time `gorm:"column:completed_at" bson:"completed_at,omitempty"`
	DueAt       *time.Time `gorm:"column:due_at" bson:"due_at,omitempty"`
	Priority    string     `gorm:"column:priority" bson:"priority"` // local only, never sent to or read from providers
	CreatedAt   time.Time  `gorm:"column:created_at" bson:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" bson:"updated_at"`
}

// TableName specifies the table name for GORM
func (Task) TableName() string {
	return "tasks"
}
