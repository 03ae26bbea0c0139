package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"senfret/internal/models"
	"senfret/internal/store"
)

func (s *Store) InsertDevis(ctx context.Context, d *models.Devis) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	_, err := s.collection(DevisCollection).InsertOne(ctx, d)
	return mapError(err)
}

func (s *Store) findDevis(ctx context.Context, filter bson.M) (*models.Devis, error) {
	var d models.Devis
	if err := s.collection(DevisCollection).FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, mapError(err)
	}
	return &d, nil
}

func (s *Store) GetDevis(ctx context.Context, id primitive.ObjectID) (*models.Devis, error) {
	return s.findDevis(ctx, bson.M{"_id": id})
}

func (s *Store) FindDevisForClient(ctx context.Context, id, clientID primitive.ObjectID) (*models.Devis, error) {
	return s.findDevis(ctx, bson.M{"_id": id, "client": clientID})
}

func (s *Store) FindDevisForTranslataire(ctx context.Context, id, translataireID primitive.ObjectID) (*models.Devis, error) {
	return s.findDevis(ctx, bson.M{"_id": id, "translataire": translataireID})
}

func (s *Store) ListDevis(ctx context.Context, f models.DevisFilter) ([]models.Devis, int64, error) {
	filter := bson.M{}
	if f.ClientID != nil {
		filter["client"] = *f.ClientID
	}
	if f.TranslataireID != nil {
		filter["translataire"] = *f.TranslataireID
	}
	if f.Statut != "" {
		filter["statut"] = f.Statut
	}

	coll := s.collection(DevisCollection)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := coll.Find(ctx, filter, pageOptions(f.Page, f.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	devis := make([]models.Devis, 0)
	if err := cursor.All(ctx, &devis); err != nil {
		return nil, 0, err
	}
	return devis, total, nil
}

func (s *Store) UpdateDevis(ctx context.Context, d *models.Devis) error {
	expected := d.Version
	d.Version = expected + 1

	res, err := s.collection(DevisCollection).ReplaceOne(ctx,
		bson.M{"_id": d.ID, "version": expected},
		d,
	)
	if err != nil {
		d.Version = expected
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	d.Version = expected
	count, err := s.collection(DevisCollection).CountDocuments(ctx, bson.M{"_id": d.ID})
	if err != nil {
		return err
	}
	if count == 0 {
		return store.ErrNotFound
	}
	return store.ErrVersionConflict
}

func (s *Store) DeleteDevis(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.collection(DevisCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListExpiredDevis(ctx context.Context, now time.Time, limit int64) ([]models.Devis, error) {
	opts := options.Find().SetSort(bson.D{{Key: "dateExpiration", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.collection(DevisCollection).Find(ctx, bson.M{
		"statut":         models.StatutEnAttente,
		"dateExpiration": bson.M{"$lt": now, "$gt": time.Unix(0, 0)},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	devis := make([]models.Devis, 0)
	if err := cursor.All(ctx, &devis); err != nil {
		return nil, err
	}
	return devis, nil
}

func (s *Store) CountDevisByStatut(ctx context.Context) (map[models.Statut]int64, error) {
	cursor, err := s.collection(DevisCollection).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$statut"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Statut models.Statut `bson:"_id"`
		Count  int64         `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[models.Statut]int64, len(rows))
	for _, row := range rows {
		counts[row.Statut] = row.Count
	}
	return counts, nil
}
