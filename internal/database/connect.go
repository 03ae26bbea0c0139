package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"senfret/internal/logging"
)

var logger = logging.New("database")

// Collection names.
const (
	UsersCollection          = "users"
	TranslatairesCollection  = "translataires"
	AdminsCollection         = "admins"
	DevisCollection          = "devis"
	ReviewsCollection        = "reviews"
	NotificationsCollection  = "notifications"
	OutboxCollection         = "outbox"
	TokenBlacklistCollection = "tokenblacklists"
)

func Connect(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
