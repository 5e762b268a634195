package models

import "time"

// CalendarEvent mirrors one remote calendar event (or a locally authored one).
type CalendarEvent struct {
	ID          string    `gorm:"column:id;primaryKey" bson:"_id"`
	UserID      string    `gorm:"column:user_id;index" bson:"user_id"`
	ProviderID  *string   `gorm:"column:provider_id" bson:"provider_id,omitempty"`
	Provider    Provider  `gorm:"column:provider" bson:"provider"`
	Source      Source    `gorm:"column:source" bson:"source"`
	Title       string    `gorm:"column:title" bson:"title"`
	Description string    `gorm:"column:description" bson:"description"`
	Location    string    `gorm:"column:location" bson:"location"`
	StartTime   time.Time `gorm:"column:start_time;index" bson:"start_time"`
	EndTime     time.Time `gorm:"column:end_time" bson:"end_time"`
	IsAllDay    bool      `gorm:"column:is_all_day" bson:"is_all_day"`
	IsRecurring bool      `gorm:"column:is_recurring" bson:"is_recurring"`
	SeriesID    *string   `gorm:"column:series_id;index" bson:"series_id,omitempty"`
	Recurrence  string    `gorm:"column:recurrence" bson:"recurrence"`
	Status      string    `gorm:"column:status" bson:"status"`
	CreatedAt   time.Time `gorm:"column:created_at" bson:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" bson:"updated_at"`
}

// TableName specifies the table name for GORM
func (CalendarEvent) TableName() string {
	return "calendar_events"
}
