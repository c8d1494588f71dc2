package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kekopoly/monopoly/internal/game/models"
)

// MatchStore archives match records, one document per chat
type MatchStore struct {
	matches *mongo.Collection
}

// NewMatchStore creates a MatchStore on the given collection
func NewMatchStore(db *mongo.Database, collection string) *MatchStore {
	return &MatchStore{
		matches: db.Collection(collection),
	}
}

// SaveMatch upserts the record of a chat
func (s *MatchStore) SaveMatch(ctx context.Context, chatID int64, rec models.GameRecord) error {
	rec.ChatID = chatID
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.matches.ReplaceOne(ctx, bson.M{"_id": chatID}, rec, opts); err != nil {
		return fmt.Errorf("failed to archive match for chat %d: %w", chatID, err)
	}
	return nil
}

// FindMatch returns the archived record of a chat or models.ErrNotFound
func (s *MatchStore) FindMatch(ctx context.Context, chatID int64) (models.GameRecord, error) {
	var rec models.GameRecord
	err := s.matches.FindOne(ctx, bson.M{"_id": chatID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return rec, models.ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("failed to find match for chat %d: %w", chatID, err)
	}
	return rec, nil
}

// DeleteMatch removes the archived record of a chat
func (s *MatchStore) DeleteMatch(ctx context.Context, chatID int64) error {
	_, err := s.matches.DeleteOne(ctx, bson.M{"_id": chatID})
	return err
}

// Ping checks the primary is reachable
func (s *MatchStore) Ping(ctx context.Context) error {
	return s.matches.Database().Client().Ping(ctx, readpref.Primary())
}
