package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"senfret/internal/models"
	"senfret/internal/store"
)

func (s *Store) EnqueueOutbox(ctx context.Context, m *models.OutboxMessage) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	_, err := s.collection(OutboxCollection).InsertOne(ctx, m)
	return mapError(err)
}

// ClaimOutbox leases messages one at a time with findOneAndUpdate so that
// several workers never claim the same message.
func (s *Store) ClaimOutbox(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.OutboxMessage, error) {
	filter := bson.M{"$or": []bson.M{
		{"status": models.OutboxPending, "nextAttemptAt": bson.M{"$lte": now}},
		{"status": models.OutboxProcessing, "lockedUntil": bson.M{"$lt": now}},
	}}
	update := bson.M{"$set": bson.M{
		"status":      models.OutboxProcessing,
		"lockedUntil": now.Add(lease),
		"updatedAt":   now,
	}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "nextAttemptAt", Value: 1}}).
		SetReturnDocument(options.After)

	claimed := make([]models.OutboxMessage, 0, limit)
	for len(claimed) < limit {
		var m models.OutboxMessage
		err := s.collection(OutboxCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, m)
	}
	return claimed, nil
}

func (s *Store) CompleteOutbox(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.collection(OutboxCollection).UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"status": models.OutboxDone, "updatedAt": time.Now()},
		"$unset": bson.M{"lockedUntil": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FailOutbox(ctx context.Context, id primitive.ObjectID, attempts int, next time.Time, lastErr string, dead bool) error {
	status := models.OutboxPending
	if dead {
		status = models.OutboxDead
	}
	res, err := s.collection(OutboxCollection).UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"status":        status,
			"attempts":      attempts,
			"nextAttemptAt": next,
			"lastError":     lastErr,
			"updatedAt":     time.Now(),
		},
		"$unset": bson.M{"lockedUntil": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
