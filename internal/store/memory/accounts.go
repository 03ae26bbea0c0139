package memory

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/models"
	"senfret/internal/store"
)

func (s *Store) accountRef(t models.AccountType, id primitive.ObjectID) *models.Account {
	switch t {
	case models.AccountUser:
		if u, ok := s.users[id]; ok {
			return &u.Account
		}
	case models.AccountTranslataire:
		if tr, ok := s.translataires[id]; ok {
			return &tr.Account
		}
	case models.AccountAdmin:
		if a, ok := s.admins[id]; ok {
			return &a.Account
		}
	}
	return nil
}

func (s *Store) accountsOf(t models.AccountType) []*models.Account {
	var out []*models.Account
	switch t {
	case models.AccountUser:
		for _, u := range s.users {
			out = append(out, &u.Account)
		}
	case models.AccountTranslataire:
		for _, tr := range s.translataires {
			out = append(out, &tr.Account)
		}
	case models.AccountAdmin:
		for _, a := range s.admins {
			out = append(out, &a.Account)
		}
	}
	return out
}

var accountTypes = []models.AccountType{models.AccountUser, models.AccountTranslataire, models.AccountAdmin}

func (s *Store) EmailTaken(ctx context.Context, email string) (bool, error) {
	if err := done(ctx); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emailTakenLocked(email), nil
}

func (s *Store) emailTakenLocked(email string) bool {
	for _, t := range accountTypes {
		for _, a := range s.accountsOf(t) {
			if strings.EqualFold(a.Email, email) {
				return true
			}
		}
	}
	return false
}

func (s *Store) NineaTaken(ctx context.Context, ninea string) (bool, error) {
	if err := done(ctx); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tr := range s.translataires {
		if tr.NINEA == ninea {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTakenLocked(u.Email) {
		return store.ErrDuplicate
	}
	ensureID(&u.ID)
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) InsertTranslataire(ctx context.Context, t *models.Translataire) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTakenLocked(t.Email) {
		return store.ErrDuplicate
	}
	for _, existing := range s.translataires {
		if existing.NINEA == t.NINEA {
			return store.ErrDuplicate
		}
	}
	ensureID(&t.ID)
	cp := *t
	s.translataires[t.ID] = &cp
	return nil
}

func (s *Store) InsertAdmin(ctx context.Context, a *models.Admin) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTakenLocked(a.Email) {
		return store.ErrDuplicate
	}
	ensureID(&a.ID)
	cp := *a
	s.admins[a.ID] = &cp
	return nil
}

func (s *Store) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetTranslataire(ctx context.Context, id primitive.ObjectID) (*models.Translataire, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.translataires[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

func (s *Store) GetAdmin(ctx context.Context, id primitive.ObjectID) (*models.Admin, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) FindTranslataireByCompanyName(ctx context.Context, name string) (*models.Translataire, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tr := range s.translataires {
		if tr.CompanyName == name {
			cp := *tr
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindAccount(ctx context.Context, t models.AccountType, id primitive.ObjectID) (*models.Account, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.accountRef(t, id)
	if a == nil {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, t models.AccountType, email string) (*models.Account, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accountsOf(t) {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindAccountByVerificationToken(ctx context.Context, hash string) (models.AccountType, *models.Account, error) {
	if err := done(ctx); err != nil {
		return "", nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range accountTypes {
		for _, a := range s.accountsOf(t) {
			if hash != "" && a.VerificationTokenHash == hash {
				cp := *a
				return t, &cp, nil
			}
		}
	}
	return "", nil, store.ErrNotFound
}

func (s *Store) FindAccountByResetToken(ctx context.Context, hash string, now time.Time) (models.AccountType, *models.Account, error) {
	if err := done(ctx); err != nil {
		return "", nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range accountTypes {
		for _, a := range s.accountsOf(t) {
			if hash == "" || a.ResetTokenHash != hash {
				continue
			}
			if a.ResetTokenExpiresAt == nil || !a.ResetTokenExpiresAt.After(now) {
				continue
			}
			cp := *a
			return t, &cp, nil
		}
	}
	return "", nil, store.ErrNotFound
}

func applyAccountUpdate(a *models.Account, u models.AccountUpdate, now time.Time) {
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.GoogleID != nil {
		a.GoogleID = *u.GoogleID
	}
	if u.IsVerified != nil {
		a.IsVerified = *u.IsVerified
	}
	if u.IsApproved != nil {
		a.IsApproved = *u.IsApproved
	}
	if u.IsBlocked != nil {
		a.IsBlocked = *u.IsBlocked
	}
	if u.IsArchived != nil {
		a.IsArchived = *u.IsArchived
	}
	if u.VerificationTokenHash != nil {
		a.VerificationTokenHash = *u.VerificationTokenHash
	}
	if u.ResetTokenHash != nil {
		a.ResetTokenHash = *u.ResetTokenHash
	}
	if u.ResetTokenExpiresAt != nil {
		expires := *u.ResetTokenExpiresAt
		a.ResetTokenExpiresAt = &expires
	}
	if u.ClearResetToken {
		a.ResetTokenHash = ""
		a.ResetTokenExpiresAt = nil
	}
	a.UpdatedAt = now
}

func (s *Store) UpdateAccount(ctx context.Context, t models.AccountType, id primitive.ObjectID, u models.AccountUpdate) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountRef(t, id)
	if a == nil {
		return store.ErrNotFound
	}
	applyAccountUpdate(a, u, s.Now())
	return nil
}

func (s *Store) UpdateAccounts(ctx context.Context, t models.AccountType, ids []primitive.ObjectID, u models.AccountUpdate) (int64, error) {
	if err := done(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched int64
	for _, id := range ids {
		if a := s.accountRef(t, id); a != nil {
			applyAccountUpdate(a, u, s.Now())
			matched++
		}
	}
	return matched, nil
}

func (s *Store) DeleteAccounts(ctx context.Context, t models.AccountType, ids []primitive.ObjectID) (int64, error) {
	if err := done(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if s.accountRef(t, id) == nil {
			continue
		}
		switch t {
		case models.AccountUser:
			delete(s.users, id)
		case models.AccountTranslataire:
			delete(s.translataires, id)
		case models.AccountAdmin:
			delete(s.admins, id)
		}
		deleted++
	}
	return deleted, nil
}

func matchAccount(a models.Account, f models.AccountFilter) bool {
	if f.Blocked != nil && a.IsBlocked != *f.Blocked {
		return false
	}
	if f.Archived != nil && a.IsArchived != *f.Archived {
		return false
	}
	if f.Approved != nil && a.IsApproved != *f.Approved {
		return false
	}
	return true
}

func (s *Store) ListUsers(ctx context.Context, f models.AccountFilter) ([]models.User, int64, error) {
	if err := done(ctx); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.User
	for _, u := range s.users {
		if !matchAccount(u.Account, f) {
			continue
		}
		if f.Search != "" && !containsFold(u.Email, f.Search) && !containsFold(u.FullName(), f.Search) && !containsFold(u.Company, f.Search) {
			continue
		}
		out = append(out, *u)
	}
	sortNewestFirst(out, func(u models.User) time.Time { return u.CreatedAt }, func(u models.User) primitive.ObjectID { return u.ID })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (s *Store) ListTranslataires(ctx context.Context, f models.AccountFilter) ([]models.Translataire, int64, error) {
	if err := done(ctx); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Translataire
	for _, tr := range s.translataires {
		if !matchAccount(tr.Account, f) {
			continue
		}
		if f.Search != "" && !containsFold(tr.Email, f.Search) && !containsFold(tr.CompanyName, f.Search) && !containsFold(tr.NINEA, f.Search) {
			continue
		}
		out = append(out, *tr)
	}
	sortNewestFirst(out, func(t models.Translataire) time.Time { return t.CreatedAt }, func(t models.Translataire) primitive.ObjectID { return t.ID })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (s *Store) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	if err := done(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Admin, 0, len(s.admins))
	for _, a := range s.admins {
		out = append(out, *a)
	}
	sortNewestFirst(out, func(a models.Admin) time.Time { return a.CreatedAt }, func(a models.Admin) primitive.ObjectID { return a.ID })
	return out, nil
}

func (s *Store) AdminIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	admins, err := s.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *Store) CountAccounts(ctx context.Context, t models.AccountType, f models.AccountFilter) (int64, error) {
	if err := done(ctx); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, a := range s.accountsOf(t) {
		if matchAccount(*a, f) {
			n++
		}
	}
	return n, nil
}

func (s *Store) SetTranslataireRating(ctx context.Context, id primitive.ObjectID, summary models.RatingSummary) error {
	if err := done(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.translataires[id]
	if !ok {
		return store.ErrNotFound
	}
	tr.AvgRating = summary.Average
	tr.RatingsCount = summary.Count
	return nil
}
