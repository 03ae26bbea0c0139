package memory

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/models"
	"senfret/internal/store"
)

func (s *Store) InsertReview(ctx context.Context, r *models.Review) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reviews {
		if existing.TranslataireID == r.TranslataireID && existing.UserID == r.UserID {
			return store.ErrDuplicate
		}
	}
	ensureID(&r.ID)
	cp := *r
	s.reviews[r.ID] = &cp
	return nil
}

func (s *Store) GetReview(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) UpdateReview(ctx context.Context, r *models.Review) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[r.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *r
	s.reviews[r.ID] = &cp
	return nil
}

func (s *Store) DeleteReview(ctx context.Context, id primitive.ObjectID) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.reviews, id)
	return nil
}

func (s *Store) listReviews(match func(*models.Review) bool) []models.Review {
	var out []models.Review
	for _, r := range s.reviews {
		if match(r) {
			out = append(out, *r)
		}
	}
	sortNewestFirst(out, func(r models.Review) time.Time { return r.CreatedAt }, func(r models.Review) primitive.ObjectID { return r.ID })
	return out
}

func (s *Store) ListReviewsByTranslataire(ctx context.Context, translataireID primitive.ObjectID, approvedOnly bool) ([]models.Review, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listReviews(func(r *models.Review) bool {
		return r.TranslataireID == translataireID && (!approvedOnly || r.IsApproved)
	}), nil
}

func (s *Store) ListReviewsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Review, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listReviews(func(r *models.Review) bool { return r.UserID == userID }), nil
}

func (s *Store) RatingSummary(ctx context.Context, translataireID primitive.ObjectID) (models.RatingSummary, error) {
	if err := done(ctx); err != nil {
		return models.RatingSummary{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum, count int
	for _, r := range s.reviews {
		if r.TranslataireID == translataireID && r.IsApproved {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return models.RatingSummary{}, nil
	}
	return models.RatingSummary{Average: float64(sum) / float64(count), Count: count}, nil
}

func (s *Store) CountReviews(ctx context.Context) (int64, error) {
	if err := done(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.reviews)), nil
}
