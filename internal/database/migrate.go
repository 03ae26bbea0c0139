package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"senfret/internal/models"
)

// MigrateLegacyDevis moves quotes still embedded in translataire documents
// into the devis collection and renames the legacy "status" field. It is
// idempotent and safe to run at every boot.
func MigrateLegacyDevis(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	moved, err := moveEmbeddedDevis(ctx, db)
	if err != nil {
		return err
	}

	res, err := db.Collection(DevisCollection).UpdateMany(ctx,
		bson.M{"status": bson.M{"$exists": true}, "statut": bson.M{"$exists": false}},
		bson.M{"$rename": bson.M{"status": "statut"}},
	)
	if err != nil {
		return err
	}
	if _, err := db.Collection(DevisCollection).UpdateMany(ctx,
		bson.M{"status": bson.M{"$exists": true}},
		bson.M{"$unset": bson.M{"status": ""}},
	); err != nil {
		return err
	}

	if moved > 0 || res.ModifiedCount > 0 {
		logger.Info().Int("moved", moved).Int64("renamed", res.ModifiedCount).Msg("legacy devis migrated")
	}
	return nil
}

func moveEmbeddedDevis(ctx context.Context, db *mongo.Database) (int, error) {
	translataires := db.Collection(TranslatairesCollection)
	cursor, err := translataires.Find(ctx,
		bson.M{"devis.0": bson.M{"$exists": true}},
		options.Find().SetProjection(bson.M{"devis": 1}),
	)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	moved := 0
	for cursor.Next(ctx) {
		var doc struct {
			ID    primitive.ObjectID `bson:"_id"`
			Devis []models.Devis     `bson:"devis"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return moved, err
		}

		for _, d := range doc.Devis {
			d.TranslataireID = doc.ID
			if d.ID.IsZero() {
				d.ID = primitive.NewObjectID()
			}
			if d.UpdatedAt.IsZero() {
				d.UpdatedAt = d.CreatedAt
			}
			_, err := db.Collection(DevisCollection).ReplaceOne(ctx,
				bson.M{"_id": d.ID},
				d,
				options.Replace().SetUpsert(true),
			)
			if err != nil {
				return moved, err
			}
			moved++
		}

		if _, err := translataires.UpdateByID(ctx, doc.ID, bson.M{"$unset": bson.M{"devis": ""}}); err != nil {
			return moved, err
		}
	}
	return moved, cursor.Err()
}
