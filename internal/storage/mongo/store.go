// Package mongo provides a MongoDB-backed session store.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollection = "widget_sessions"

// Store persists session ids in a MongoDB collection
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type sessionDoc struct {
	BusinessID string    `bson:"_id"`
	SessionID  string    `bson:"session_id"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// NewStore connects to MongoDB and prepares the session collection
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(database).Collection(sessionCollection),
	}, nil
}

// Get returns the stored session id for a business, or ""
func (s *Store) Get(ctx context.Context, businessID string) (string, error) {
	var doc sessionDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": businessID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	return doc.SessionID, nil
}

// Set stores the session id for a business, replacing any previous one
func (s *Store) Set(ctx context.Context, businessID, sessionID string) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": businessID},
		sessionDoc{BusinessID: businessID, SessionID: sessionID, UpdatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Delete removes the stored session id for a business
func (s *Store) Delete(ctx context.Context, businessID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": businessID}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}
