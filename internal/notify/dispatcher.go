package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/logging"
	"senfret/internal/models"
	"senfret/internal/store"
)

// ErrMalformed marks messages that can never be delivered.
var ErrMalformed = errors.New("notify: malformed outbox message")

type dispatchStore interface {
	store.NotificationStore
	AdminIDs(ctx context.Context) ([]primitive.ObjectID, error)
}

// Dispatcher delivers one outbox message.
type Dispatcher struct {
	store  dispatchStore
	hub    *Hub
	mailer Mailer
	events Publisher
	now    func() time.Time
	log    zerolog.Logger
}

// NewDispatcher builds a dispatcher; events may be nil.
func NewDispatcher(s dispatchStore, hub *Hub, mailer Mailer, events Publisher) *Dispatcher {
	return &Dispatcher{
		store:  s,
		hub:    hub,
		mailer: mailer,
		events: events,
		now:    time.Now,
		log:    logging.New("dispatcher"),
	}
}

func (d *Dispatcher) Deliver(ctx context.Context, m models.OutboxMessage) error {
	switch m.Kind {
	case models.OutboxNotification:
		if m.Notification == nil {
			return ErrMalformed
		}
		return d.deliverNotification(ctx, m)
	case models.OutboxEmail:
		if m.Email == nil {
			return ErrMalformed
		}
		return d.mailer.Send(ctx, *m.Email)
	}
	return fmt.Errorf("%w: kind %q", ErrMalformed, m.Kind)
}

func (d *Dispatcher) deliverNotification(ctx context.Context, m models.OutboxMessage) error {
	job := m.Notification
	recipients := append([]models.Recipient(nil), job.Recipients...)
	if job.Audience == models.AudienceAdmins {
		ids, err := d.store.AdminIDs(ctx)
		if err != nil {
			return fmt.Errorf("resolve admins: %w", err)
		}
		for _, id := range ids {
			recipients = append(recipients, models.Recipient{ID: id, Type: models.AccountAdmin})
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	now := d.now()
	outboxID := m.ID
	notifications := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		notifications = append(notifications, models.Notification{
			RecipientID:   r.ID,
			RecipientType: r.Type,
			Type:          job.Type,
			Title:         job.Title,
			Message:       job.Message,
			Data:          job.Data,
			OutboxID:      &outboxID,
			CreatedAt:     now,
		})
	}
	inserted, err := d.store.InsertNotifications(ctx, notifications)
	if err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	if len(inserted) == 0 {
		return nil
	}

	for _, n := range inserted {
		d.hub.Publish(n)
	}

	if d.events != nil {
		event := Event{
			Type:       job.Type,
			SubjectID:  m.SubjectID,
			Recipients: len(notifications),
			Data:       job.Data,
			OccurredAt: now,
		}
		if err := d.events.Publish(ctx, m.SubjectID, event); err != nil {
			d.log.Warn().Err(err).Str("type", job.Type).Msg("domain event not published")
		}
	}
	return nil
}
