package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes(db *mongo.Database, collection string, indexes ...mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	names, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Error().Err(err).Str("collection", collection).Msg("index creation failed")
		return err
	}
	logger.Info().Str("collection", collection).Strs("indexes", names).Msg("indexes ensured")
	return nil
}

func emailIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_unique").SetUnique(true),
	}
}

func EnsureAccountIndexes(db *mongo.Database) error {
	if err := createIndexes(db, UsersCollection, emailIndex()); err != nil {
		return err
	}
	if err := createIndexes(db, AdminsCollection, emailIndex()); err != nil {
		return err
	}
	return createIndexes(db, TranslatairesCollection,
		emailIndex(),
		mongo.IndexModel{
			Keys: bson.D{{Key: "ninea", Value: 1}},
			Options: options.Index().
				SetName("ninea_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"ninea": bson.M{"$exists": true}}),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "nomEntreprise", Value: 1}},
			Options: options.Index().SetName("nomEntreprise_index"),
		},
	)
}

func EnsureDevisIndexes(db *mongo.Database) error {
	return createIndexes(db, DevisCollection,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "client", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("client_createdAt"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "translataire", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("translataire_createdAt"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "statut", Value: 1}, {Key: "dateExpiration", Value: 1}},
			Options: options.Index().SetName("statut_dateExpiration"),
		},
	)
}

func EnsureReviewIndexes(db *mongo.Database) error {
	return createIndexes(db, ReviewsCollection,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "translataire", Value: 1}, {Key: "user", Value: 1}},
			Options: options.Index().SetName("translataire_user_unique").SetUnique(true),
		},
	)
}

func EnsureNotificationIndexes(db *mongo.Database) error {
	return createIndexes(db, NotificationsCollection,
		mongo.IndexModel{
			Keys: bson.D{
				{Key: "recipientType", Value: 1},
				{Key: "recipientId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
			Options: options.Index().SetName("recipient_createdAt"),
		},
		mongo.IndexModel{
			Keys: bson.D{
				{Key: "outboxId", Value: 1},
				{Key: "recipientType", Value: 1},
				{Key: "recipientId", Value: 1},
			},
			Options: options.Index().
				SetName("outbox_recipient_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"outboxId": bson.M{"$exists": true}}),
		},
	)
}

func EnsureOutboxIndexes(db *mongo.Database) error {
	return createIndexes(db, OutboxCollection,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "nextAttemptAt", Value: 1}},
			Options: options.Index().SetName("status_nextAttemptAt"),
		},
	)
}

func EnsureTokenIndexes(db *mongo.Database) error {
	return createIndexes(db, TokenBlacklistCollection,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "tokenHash", Value: 1}},
			Options: options.Index().SetName("tokenHash_unique").SetUnique(true),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
		},
	)
}

// EnsureIndexes creates every index the application relies on. Failures are
// returned after all collections have been attempted.
func EnsureIndexes(db *mongo.Database) error {
	var firstErr error
	for _, ensure := range []func(*mongo.Database) error{
		EnsureAccountIndexes,
		EnsureDevisIndexes,
		EnsureReviewIndexes,
		EnsureNotificationIndexes,
		EnsureOutboxIndexes,
		EnsureTokenIndexes,
	} {
		if err := ensure(db); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
