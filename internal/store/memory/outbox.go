package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/models"
	"senfret/internal/store"
)

func (s *Store) EnqueueOutbox(ctx context.Context, m *models.OutboxMessage) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&m.ID)
	cp := *m
	s.outbox[m.ID] = &cp
	return nil
}

func (s *Store) ClaimOutbox(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.OutboxMessage, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.OutboxMessage
	for _, m := range s.outbox {
		switch {
		case m.Status == models.OutboxPending && !m.NextAttemptAt.After(now):
			due = append(due, m)
		case m.Status == models.OutboxProcessing && m.LockedUntil != nil && m.LockedUntil.Before(now):
			due = append(due, m)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
		}
		return due[i].ID.Hex() < due[j].ID.Hex()
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	locked := now.Add(lease)
	out := make([]models.OutboxMessage, 0, len(due))
	for _, m := range due {
		m.Status = models.OutboxProcessing
		m.LockedUntil = &locked
		m.UpdatedAt = now
		out = append(out, *m)
	}
	return out, nil
}

func (s *Store) CompleteOutbox(ctx context.Context, id primitive.ObjectID) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.outbox[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Status = models.OutboxDone
	m.LockedUntil = nil
	m.UpdatedAt = s.Now()
	return nil
}

func (s *Store) FailOutbox(ctx context.Context, id primitive.ObjectID, attempts int, next time.Time, lastErr string, dead bool) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.outbox[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Status = models.OutboxPending
	if dead {
		m.Status = models.OutboxDead
	}
	m.Attempts = attempts
	m.NextAttemptAt = next
	m.LastError = lastErr
	m.LockedUntil = nil
	m.UpdatedAt = s.Now()
	return nil
}

// Outbox returns a snapshot of every outbox message, oldest first.
func (s *Store) Outbox() []models.OutboxMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OutboxMessage, 0, len(s.outbox))
	for _, m := range s.outbox {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}
