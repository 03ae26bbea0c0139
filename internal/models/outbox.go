package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Outbox message kinds.
const (
	OutboxNotification = "notification"
	OutboxEmail        = "email"
)

// Outbox message states.
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxDone       = "done"
	OutboxDead       = "dead"
)

// AudienceAdmins addresses every Admin document, resolved at delivery time.
const AudienceAdmins = "admins"

// Recipient addresses one actor.
type Recipient struct {
	ID   primitive.ObjectID `bson:"id" json:"id"`
	Type AccountType        `bson:"type" json:"type"`
}

// NotificationJob is the payload of a notification outbox message.
type NotificationJob struct {
	Recipients []Recipient       `bson:"recipients,omitempty" json:"recipients,omitempty"`
	Audience   string            `bson:"audience,omitempty" json:"audience,omitempty"`
	Type       string            `bson:"type" json:"type"`
	Title      string            `bson:"title" json:"title"`
	Message    string            `bson:"message" json:"message"`
	Data       map[string]string `bson:"data,omitempty" json:"data,omitempty"`
}

// EmailJob is the payload of an e-mail outbox message.
type EmailJob struct {
	To      string `bson:"to" json:"to"`
	Subject string `bson:"subject" json:"subject"`
	Body    string `bson:"body" json:"body"`
}

// OutboxMessage is a side effect waiting for delivery by the worker.
type OutboxMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind          string             `bson:"kind" json:"kind"`
	SubjectID     string             `bson:"subjectId,omitempty" json:"subjectId,omitempty"`
	Notification  *NotificationJob   `bson:"notification,omitempty" json:"notification,omitempty"`
	Email         *EmailJob          `bson:"email,omitempty" json:"email,omitempty"`
	Status        string             `bson:"status" json:"status"`
	Attempts      int                `bson:"attempts" json:"attempts"`
	LastError     string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
	NextAttemptAt time.Time          `bson:"nextAttemptAt" json:"nextAttemptAt"`
	LockedUntil   *time.Time         `bson:"lockedUntil,omitempty" json:"lockedUntil,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
