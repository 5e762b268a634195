package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vipul43/privatezone/internal/models"
)

func (s *Store) FindEventByProviderID(ctx context.Context, userID, providerID string) (*models.CalendarEvent, error) {
	var event models.CalendarEvent
	if err := s.findOne(ctx, s.events, bson.M{"user_id": userID, "provider_id": providerID}, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *Store) CreateEvent(ctx context.Context, event *models.CalendarEvent) error {
	return s.insert(ctx, s.events, event)
}

func (s *Store) UpdateEvent(ctx context.Context, event *models.CalendarEvent) error {
	return s.replace(ctx, s.events, event.ID, event)
}

func (s *Store) DeleteEventByProviderID(ctx context.Context, userID, providerID string) error {
	result, err := s.events.DeleteOne(ctx, bson.M{"user_id": userID, "provider_id": providerID})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEventSeries(ctx context.Context, userID, seriesID string, from *time.Time) (int64, error) {
	filter := bson.M{"user_id": userID}
	if from == nil {
		filter["$or"] = bson.A{bson.M{"series_id": seriesID}, bson.M{"provider_id": seriesID}}
	} else {
		filter["series_id"] = seriesID
		filter["start_time"] = bson.M{"$gte": *from}
	}

	result, err := s.events.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete event series: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *Store) ListSeriesOccurrences(ctx context.Context, userID, seriesID string) ([]models.CalendarEvent, error) {
	filter := bson.M{"user_id": userID, "series_id": seriesID}
	cursor, err := s.events.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list series occurrences: %w", err)
	}
	var events []models.CalendarEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode series occurrences: %w", err)
	}
	return events, nil
}
