package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is a client's rating of a forwarder. One per (translataire, user).
type Review struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TranslataireID primitive.ObjectID `bson:"translataire" json:"translataire"`
	UserID         primitive.ObjectID `bson:"user" json:"user"`
	Rating         int                `bson:"rating" json:"rating"`
	Comment        string             `bson:"comment,omitempty" json:"comment,omitempty"`
	Attachments    []string           `bson:"attachments,omitempty" json:"attachments,omitempty"`
	IsApproved     bool               `bson:"isApproved" json:"isApproved"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RatingSummary is the derived rating of a forwarder.
type RatingSummary struct {
	Average float64 `bson:"avgRating" json:"avgRating"`
	Count   int     `bson:"count" json:"ratingsCount"`
}
