package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types.
const (
	NotifDevisCreated           = "devis_created"
	NotifDevisUpdated           = "devis_updated"
	NotifDevisCancelled         = "devis_cancelled"
	NotifDevisAccepted          = "devis_accepted"
	NotifDevisRefused           = "devis_refused"
	NotifDevisExpired           = "devis_expired"
	NotifTranslataireRegistered = "translataire_registered"
	NotifAccountApproved        = "account_approved"
	NotifReviewCreated          = "review_created"
)

type Notification struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	RecipientID   primitive.ObjectID  `bson:"recipientId" json:"recipientId"`
	RecipientType AccountType         `bson:"recipientType" json:"recipientType"`
	Type          string              `bson:"type" json:"type"`
	Title         string              `bson:"title" json:"title"`
	Message       string              `bson:"message" json:"message"`
	Data          map[string]string   `bson:"data,omitempty" json:"data,omitempty"`
	IsRead        bool                `bson:"isRead" json:"isRead"`
	OutboxID      *primitive.ObjectID `bson:"outboxId,omitempty" json:"-"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
}

// Room is the realtime channel name of the recipient.
func (n Notification) Room() string {
	return Room(n.RecipientType, n.RecipientID)
}

func Room(t AccountType, id primitive.ObjectID) string {
	return string(t) + ":" + id.Hex()
}

type NotificationFilter struct {
	RecipientID   primitive.ObjectID
	RecipientType AccountType
	UnreadOnly    bool
	Page          int64
	Limit         int64
}
