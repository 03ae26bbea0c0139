package memory

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/models"
	"senfret/internal/store"
)

func cloneDevis(d *models.Devis) *models.Devis {
	cp := *d
	cp.ClientFiles = append([]string(nil), d.ClientFiles...)
	cp.TranslataireFiles = append([]string(nil), d.TranslataireFiles...)
	if d.Shipment != nil {
		shipment := *d.Shipment
		cp.Shipment = &shipment
	}
	if d.RespondedAt != nil {
		at := *d.RespondedAt
		cp.RespondedAt = &at
	}
	return &cp
}

func (s *Store) InsertDevis(ctx context.Context, d *models.Devis) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ensureID(&d.ID)
	if _, exists := s.devis[d.ID]; exists {
		return store.ErrDuplicate
	}
	s.devis[d.ID] = cloneDevis(d)
	return nil
}

func (s *Store) GetDevis(ctx context.Context, id primitive.ObjectID) (*models.Devis, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devis[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneDevis(d), nil
}

func (s *Store) FindDevisForClient(ctx context.Context, id, clientID primitive.ObjectID) (*models.Devis, error) {
	d, err := s.GetDevis(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.ClientID != clientID {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) FindDevisForTranslataire(ctx context.Context, id, translataireID primitive.ObjectID) (*models.Devis, error) {
	d, err := s.GetDevis(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.TranslataireID != translataireID {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListDevis(ctx context.Context, f models.DevisFilter) ([]models.Devis, int64, error) {
	if err := done(ctx); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Devis
	for _, d := range s.devis {
		if f.ClientID != nil && d.ClientID != *f.ClientID {
			continue
		}
		if f.TranslataireID != nil && d.TranslataireID != *f.TranslataireID {
			continue
		}
		if f.Statut != "" && d.Statut != f.Statut {
			continue
		}
		out = append(out, *cloneDevis(d))
	}
	sortNewestFirst(out, func(d models.Devis) time.Time { return d.CreatedAt }, func(d models.Devis) primitive.ObjectID { return d.ID })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (s *Store) UpdateDevis(ctx context.Context, d *models.Devis) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.devis[d.ID]
	if !ok {
		return store.ErrNotFound
	}
	if current.Version != d.Version {
		return store.ErrVersionConflict
	}
	d.Version++
	s.devis[d.ID] = cloneDevis(d)
	return nil
}

func (s *Store) DeleteDevis(ctx context.Context, id primitive.ObjectID) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devis[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.devis, id)
	return nil
}

func (s *Store) ListExpiredDevis(ctx context.Context, now time.Time, limit int64) ([]models.Devis, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Devis
	for _, d := range s.devis {
		if d.Statut == models.StatutEnAttente && !d.ExpiresAt.IsZero() && d.ExpiresAt.Before(now) {
			out = append(out, *cloneDevis(d))
		}
	}
	sortNewestFirst(out, func(d models.Devis) time.Time { return d.CreatedAt }, func(d models.Devis) primitive.ObjectID { return d.ID })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountDevisByStatut(ctx context.Context) (map[models.Statut]int64, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[models.Statut]int64{}
	for _, d := range s.devis {
		counts[d.Statut]++
	}
	return counts, nil
}
