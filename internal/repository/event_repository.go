package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vipul43/privatezone/internal/models"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// FindEventByProviderID retrieves the mirrored event for a provider event ID
func (r *EventRepository) FindEventByProviderID(ctx context.Context, userID, providerID string) (*models.CalendarEvent, error) {
	var event models.CalendarEvent
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, providerID).
		First(&event)
	if result.Error != nil {
		return nil, translate(result.Error)
	}
	return &event, nil
}

func (r *EventRepository) CreateEvent(ctx context.Context, event *models.CalendarEvent) error {
	return translate(r.db.WithContext(ctx).Create(event).Error)
}

// UpdateEvent overwrites every column except the identity ones
func (r *EventRepository) UpdateEvent(ctx context.Context, event *models.CalendarEvent) error {
	result := r.db.WithContext(ctx).Model(&models.CalendarEvent{}).
		Where("id = ?", event.ID).
		Select("*").Omit("id", "created_at").
		Updates(event)
	if result.Error != nil {
		return fmt.Errorf("failed to update event: %w", translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *EventRepository) DeleteEventByProviderID(ctx context.Context, userID, providerID string) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, providerID).
		Delete(&models.CalendarEvent{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteEventSeries removes a series. With from set only occurrences starting
// at or after it are removed and the master row stays.
func (r *EventRepository) DeleteEventSeries(ctx context.Context, userID, seriesID string, from *time.Time) (int64, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if from == nil {
		query = query.Where("(series_id = ? OR provider_id = ?)", seriesID, seriesID)
	} else {
		query = query.Where("series_id = ? AND start_time >= ?", seriesID, *from)
	}

	result := query.Delete(&models.CalendarEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete event series: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *EventRepository) ListSeriesOccurrences(ctx context.Context, userID, seriesID string) ([]models.CalendarEvent, error) {
	var events []models.CalendarEvent
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND series_id = ?", userID, seriesID).
		Order("start_time").
		Find(&events)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list series occurrences: %w", result.Error)
	}
	return events, nil
}
