package memory

import (
	"context"
	"time"
)

func (s *Store) BlacklistToken(ctx context.Context, hash string, expiresAt time.Time) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[hash] = expiresAt
	return nil
}

func (s *Store) IsTokenBlacklisted(ctx context.Context, hash string) (bool, error) {
	if err := done(ctx); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	expiresAt, ok := s.tokens[hash]
	return ok && expiresAt.After(s.Now()), nil
}
