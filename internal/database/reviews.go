package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"senfret/internal/models"
	"senfret/internal/store"
)

func (s *Store) InsertReview(ctx context.Context, r *models.Review) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.collection(ReviewsCollection).InsertOne(ctx, r)
	return mapError(err)
}

func (s *Store) GetReview(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	var r models.Review
	if err := s.collection(ReviewsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (s *Store) UpdateReview(ctx context.Context, r *models.Review) error {
	res, err := s.collection(ReviewsCollection).ReplaceOne(ctx, bson.M{"_id": r.ID}, r)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteReview(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.collection(ReviewsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) findReviews(ctx context.Context, filter bson.M) ([]models.Review, error) {
	cursor, err := s.collection(ReviewsCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reviews := make([]models.Review, 0)
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *Store) ListReviewsByTranslataire(ctx context.Context, translataireID primitive.ObjectID, approvedOnly bool) ([]models.Review, error) {
	filter := bson.M{"translataire": translataireID}
	if approvedOnly {
		filter["isApproved"] = true
	}
	return s.findReviews(ctx, filter)
}

func (s *Store) ListReviewsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Review, error) {
	return s.findReviews(ctx, bson.M{"user": userID})
}

func (s *Store) RatingSummary(ctx context.Context, translataireID primitive.ObjectID) (models.RatingSummary, error) {
	cursor, err := s.collection(ReviewsCollection).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "translataire", Value: translataireID},
			{Key: "isApproved", Value: true},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$translataire"},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return models.RatingSummary{}, err
	}
	defer cursor.Close(ctx)

	var rows []models.RatingSummary
	if err := cursor.All(ctx, &rows); err != nil {
		return models.RatingSummary{}, err
	}
	if len(rows) == 0 {
		return models.RatingSummary{}, nil
	}
	return rows[0], nil
}

func (s *Store) CountReviews(ctx context.Context) (int64, error) {
	return s.collection(ReviewsCollection).CountDocuments(ctx, bson.M{})
}
