package memory

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/models"
	"senfret/internal/store"
)

func (s *Store) InsertNotifications(ctx context.Context, ns []models.Notification) ([]models.Notification, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := make([]models.Notification, 0, len(ns))
	for _, n := range ns {
		if n.OutboxID != nil && s.hasOutboxNotification(*n.OutboxID, n.RecipientType, n.RecipientID) {
			continue
		}
		ensureID(&n.ID)
		s.notifications = append(s.notifications, n)
		inserted = append(inserted, n)
	}
	return inserted, nil
}

func (s *Store) hasOutboxNotification(outboxID primitive.ObjectID, t models.AccountType, id primitive.ObjectID) bool {
	for _, n := range s.notifications {
		if n.OutboxID != nil && *n.OutboxID == outboxID && n.RecipientType == t && n.RecipientID == id {
			return true
		}
	}
	return false
}

func (s *Store) ListNotifications(ctx context.Context, f models.NotificationFilter) ([]models.Notification, int64, error) {
	if err := done(ctx); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.RecipientType != f.RecipientType || n.RecipientID != f.RecipientID {
			continue
		}
		if f.UnreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	sortNewestFirst(out, func(n models.Notification) time.Time { return n.CreatedAt }, func(n models.Notification) primitive.ObjectID { return n.ID })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (s *Store) CountUnread(ctx context.Context, recipientType models.AccountType, recipientID primitive.ObjectID) (int64, error) {
	if err := done(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, notif := range s.notifications {
		if notif.RecipientType == recipientType && notif.RecipientID == recipientID && !notif.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkRead(ctx context.Context, id primitive.ObjectID, recipientType models.AccountType, recipientID primitive.ObjectID) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.ID == id && n.RecipientType == recipientType && n.RecipientID == recipientID {
			n.IsRead = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) MarkAllRead(ctx context.Context, recipientType models.AccountType, recipientID primitive.ObjectID) (int64, error) {
	if err := done(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.RecipientType == recipientType && n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			modified++
		}
	}
	return modified, nil
}

// Notifications returns a snapshot of every stored notification.
func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.notifications...)
}
