// Package mongostore is the MongoDB implementation of service.Store.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vipul43/privatezone/internal/models"
)

const (
	integrationsCollection = "integrations"
	eventsCollection       = "calendar_events"
	emailsCollection       = "emails"
	attachmentsCollection  = "email_attachments"
	tasksCollection        = "tasks"
)

type Store struct {
	client       *mongo.Client
	integrations *mongo.Collection
	events       *mongo.Collection
	emails       *mongo.Collection
	attachments  *mongo.Collection
	tasks        *mongo.Collection
}

// Connect dials uri, verifies the connection and returns a Store on database
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return NewStore(client, database), nil
}

func NewStore(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:       client,
		integrations: db.Collection(integrationsCollection),
		events:       db.Collection(eventsCollection),
		emails:       db.Collection(emailsCollection),
		attachments:  db.Collection(attachmentsCollection),
		tasks:        db.Collection(tasksCollection),
	}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes the sync engine relies on.
// Provider IDs are unique per user only where present.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	hasProviderID := bson.M{"provider_id": bson.M{"$exists": true}}

	indexes := []struct {
		collection *mongo.Collection
		model      mongo.IndexModel
	}{
		{s.integrations, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}},
			Options: options.Index().SetName("ux_integration_user_provider").SetUnique(true),
		}},
		{s.events, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().SetName("ux_calendar_events_user_provider_id").SetUnique(true).SetPartialFilterExpression(hasProviderID),
		}},
		{s.events, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "series_id", Value: 1}, {Key: "start_time", Value: 1}},
			Options: options.Index().SetName("idx_calendar_events_user_series"),
		}},
		{s.emails, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().SetName("ux_emails_user_provider_id").SetUnique(true).SetPartialFilterExpression(hasProviderID),
		}},
		{s.attachments, mongo.IndexModel{
			Keys: bson.D{{Key: "email_id", Value: 1}, {Key: "provider_attachment_id", Value: 1}},
			Options: options.Index().SetName("ux_email_attachments_provider_id").SetUnique(true).
				SetPartialFilterExpression(bson.M{"provider_attachment_id": bson.M{"$gt": ""}}),
		}},
		{s.tasks, mongo.IndexModel{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().SetName("ux_tasks_user_provider_id").SetUnique(true).SetPartialFilterExpression(hasProviderID),
		}},
	}

	for _, idx := range indexes {
		if _, err := idx.collection.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.collection.Name(), err)
		}
	}
	return nil
}

// translate maps driver errors onto the store sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrDuplicateKey
	}
	return err
}

func (s *Store) findOne(ctx context.Context, coll *mongo.Collection, filter bson.M, out interface{}, opts ...*options.FindOneOptions) error {
	return translate(coll.FindOne(ctx, filter, opts...).Decode(out))
}

func (s *Store) insert(ctx context.Context, coll *mongo.Collection, doc interface{}) error {
	_, err := coll.InsertOne(ctx, doc)
	return translate(err)
}

// replace overwrites the document with the given _id
func (s *Store) replace(ctx context.Context, coll *mongo.Collection, id string, doc interface{}) error {
	result, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return fmt.Errorf("failed to replace %s document: %w", coll.Name(), translate(err))
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
