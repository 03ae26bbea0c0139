package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) BlacklistToken(ctx context.Context, hash string, expiresAt time.Time) error {
	_, err := s.collection(TokenBlacklistCollection).UpdateOne(ctx,
		bson.M{"tokenHash": hash},
		bson.M{
			"$set":         bson.M{"expiresAt": expiresAt},
			"$setOnInsert": bson.M{"createdAt": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *Store) IsTokenBlacklisted(ctx context.Context, hash string) (bool, error) {
	count, err := s.collection(TokenBlacklistCollection).CountDocuments(ctx, bson.M{
		"tokenHash": hash,
		"expiresAt": bson.M{"$gt": time.Now()},
	})
	return count > 0, err
}
