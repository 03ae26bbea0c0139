// Package notify delivers the side effects of quote and account
// transitions: notification documents, realtime pushes, e-mails and domain
// events. Producers only enqueue outbox messages; the Worker delivers them.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/logging"
	"senfret/internal/models"
	"senfret/internal/store"
)

const enqueueTimeout = 5 * time.Second

// Outbox enqueues side effects. Failures are logged and never returned, so a
// committed primary write is never reported as failed because of them.
type Outbox struct {
	store store.OutboxStore
	now   func() time.Time
	log   zerolog.Logger
}

func NewOutbox(s store.OutboxStore) *Outbox {
	return &Outbox{store: s, now: time.Now, log: logging.New("outbox")}
}

func (o *Outbox) Notify(ctx context.Context, subjectID string, job models.NotificationJob) {
	o.enqueue(ctx, &models.OutboxMessage{
		Kind:         models.OutboxNotification,
		SubjectID:    subjectID,
		Notification: &job,
	})
}

func (o *Outbox) Email(ctx context.Context, subjectID string, job models.EmailJob) {
	if job.To == "" {
		return
	}
	o.enqueue(ctx, &models.OutboxMessage{
		Kind:      models.OutboxEmail,
		SubjectID: subjectID,
		Email:     &job,
	})
}

func (o *Outbox) enqueue(ctx context.Context, m *models.OutboxMessage) {
	// the request may already be finished when the primary write returns
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	now := o.now()
	m.Status = models.OutboxPending
	m.NextAttemptAt = now
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := o.store.EnqueueOutbox(ctx, m); err != nil {
		o.log.Error().Err(err).
			Str("kind", m.Kind).
			Str("subject", m.SubjectID).
			Msg("enqueue failed, side effect dropped")
	}
}

// ToAdmins addresses every admin at delivery time.
func ToAdmins(job models.NotificationJob) models.NotificationJob {
	job.Audience = models.AudienceAdmins
	return job
}

// To addresses one actor.
func To(t models.AccountType, id primitive.ObjectID, job models.NotificationJob) models.NotificationJob {
	job.Recipients = append(job.Recipients, models.Recipient{ID: id, Type: t})
	return job
}
