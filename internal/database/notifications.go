package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"senfret/internal/models"
	"senfret/internal/store"
)

const duplicateKeyCode = 11000

func (s *Store) InsertNotifications(ctx context.Context, ns []models.Notification) ([]models.Notification, error) {
	if len(ns) == 0 {
		return nil, nil
	}
	pending := make([]models.Notification, len(ns))
	docs := make([]interface{}, 0, len(ns))
	for i, n := range ns {
		if n.ID.IsZero() {
			n.ID = primitive.NewObjectID()
		}
		pending[i] = n
		docs = append(docs, n)
	}

	_, err := s.collection(NotificationsCollection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return pending, nil
	}

	// duplicates were written by an earlier delivery of the same outbox message
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return nil, err
	}
	skipped := make(map[int]bool, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return nil, err
		}
		skipped[we.Index] = true
	}
	inserted := make([]models.Notification, 0, len(pending)-len(skipped))
	for i, n := range pending {
		if !skipped[i] {
			inserted = append(inserted, n)
		}
	}
	return inserted, nil
}

func recipientFilter(t models.AccountType, id primitive.ObjectID) bson.M {
	return bson.M{"recipientType": t, "recipientId": id}
}

func (s *Store) ListNotifications(ctx context.Context, f models.NotificationFilter) ([]models.Notification, int64, error) {
	filter := recipientFilter(f.RecipientType, f.RecipientID)
	if f.UnreadOnly {
		filter["isRead"] = false
	}

	coll := s.collection(NotificationsCollection)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := coll.Find(ctx, filter, pageOptions(f.Page, f.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	notifications := make([]models.Notification, 0)
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (s *Store) CountUnread(ctx context.Context, recipientType models.AccountType, recipientID primitive.ObjectID) (int64, error) {
	filter := recipientFilter(recipientType, recipientID)
	filter["isRead"] = false
	return s.collection(NotificationsCollection).CountDocuments(ctx, filter)
}

func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID, recipientType models.AccountType, recipientID primitive.ObjectID) error {
	filter := recipientFilter(recipientType, recipientID)
	filter["_id"] = id
	res, err := s.collection(NotificationsCollection).UpdateOne(ctx, filter, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipientType models.AccountType, recipientID primitive.ObjectID) (int64, error) {
	filter := recipientFilter(recipientType, recipientID)
	filter["isRead"] = false
	res, err := s.collection(NotificationsCollection).UpdateMany(ctx, filter, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
