// Package moderation holds the admin back-office operations on accounts.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/apperr"
	"senfret/internal/auth"
	"senfret/internal/logging"
	"senfret/internal/models"
	"senfret/internal/notify"
	"senfret/internal/store"
)

// Bulk actions.
const (
	ActionBlock     = "block"
	ActionUnblock   = "unblock"
	ActionArchive   = "archive"
	ActionUnarchive = "unarchive"
	ActionDelete    = "delete"
)

type moderationStore interface {
	store.AccountStore
	CountDevisByStatut(ctx context.Context) (map[models.Statut]int64, error)
	CountReviews(ctx context.Context) (int64, error)
}

type Service struct {
	store  moderationStore
	outbox *notify.Outbox
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(s moderationStore, outbox *notify.Outbox) *Service {
	return &Service{store: s, outbox: outbox, now: time.Now, log: logging.New("moderation")}
}

func notFound(t models.AccountType) error {
	switch t {
	case models.AccountTranslataire:
		return apperr.NotFound("Transitaire non trouvé")
	case models.AccountAdmin:
		return apperr.NotFound("Administrateur non trouvé")
	}
	return apperr.NotFound("Utilisateur non trouvé")
}

func (s *Service) ListUsers(ctx context.Context, f models.AccountFilter) ([]models.User, int64, error) {
	users, total, err := s.store.ListUsers(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal("Erreur lors de la récupération des utilisateurs", err)
	}
	return users, total, nil
}

func (s *Service) ListTranslataires(ctx context.Context, f models.AccountFilter) ([]models.Translataire, int64, error) {
	translataires, total, err := s.store.ListTranslataires(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal("Erreur lors de la récupération des transitaires", err)
	}
	return translataires, total, nil
}

func (s *Service) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(models.AccountUser)
	}
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la récupération de l'utilisateur", err)
	}
	return u, nil
}

func (s *Service) GetTranslataire(ctx context.Context, id primitive.ObjectID) (*models.Translataire, error) {
	t, err := s.store.GetTranslataire(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(models.AccountTranslataire)
	}
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la récupération du transitaire", err)
	}
	return t, nil
}

func (s *Service) update(ctx context.Context, t models.AccountType, id primitive.ObjectID, u models.AccountUpdate) error {
	err := s.store.UpdateAccount(ctx, t, id, u)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(t)
	}
	if err != nil {
		return apperr.Internal("Erreur lors de la mise à jour du compte", err)
	}
	return nil
}

// Approve marks an account approved. Forwarders are told by notification and
// mail.
func (s *Service) Approve(ctx context.Context, t models.AccountType, id primitive.ObjectID) error {
	approved := true
	if err := s.update(ctx, t, id, models.AccountUpdate{IsApproved: &approved}); err != nil {
		return err
	}
	s.log.Info().Str("type", string(t)).Str("id", id.Hex()).Msg("account approved")
	if t != models.AccountTranslataire {
		return nil
	}

	s.outbox.Notify(ctx, id.Hex(), notify.To(t, id, models.NotificationJob{
		Type:    models.NotifAccountApproved,
		Title:   "Compte validé",
		Message: "Votre compte transitaire a été validé, vous pouvez répondre aux demandes de devis.",
	}))
	if account, err := s.store.FindAccount(ctx, t, id); err == nil {
		s.outbox.Email(ctx, id.Hex(), models.EmailJob{
			To:      account.Email,
			Subject: "Votre compte a été validé",
			Body:    "Bonne nouvelle ! Votre compte transitaire est désormais actif.",
		})
	}
	return nil
}

// ToggleBlock flips isBlocked and returns the new value.
func (s *Service) ToggleBlock(ctx context.Context, t models.AccountType, id primitive.ObjectID) (bool, error) {
	account, err := s.store.FindAccount(ctx, t, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, notFound(t)
	}
	if err != nil {
		return false, apperr.Internal("Erreur lors de la mise à jour du compte", err)
	}
	blocked := !account.IsBlocked
	if err := s.update(ctx, t, id, models.AccountUpdate{IsBlocked: &blocked}); err != nil {
		return false, err
	}
	s.log.Info().Str("type", string(t)).Str("id", id.Hex()).Bool("blocked", blocked).Msg("block toggled")
	return blocked, nil
}

func (s *Service) Delete(ctx context.Context, t models.AccountType, id primitive.ObjectID) error {
	n, err := s.store.DeleteAccounts(ctx, t, []primitive.ObjectID{id})
	if err != nil {
		return apperr.Internal("Erreur lors de la suppression du compte", err)
	}
	if n == 0 {
		return notFound(t)
	}
	s.log.Info().Str("type", string(t)).Str("id", id.Hex()).Msg("account deleted")
	return nil
}

// ParseIDs decodes hex ids, failing on the first malformed one.
func ParseIDs(raw []string) ([]primitive.ObjectID, error) {
	if len(raw) == 0 {
		return nil, apperr.Invalid("Aucun identifiant fourni")
	}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, r := range raw {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(r))
		if err != nil {
			return nil, apperr.Invalid(fmt.Sprintf("Identifiant invalide: %s", r))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Bulk applies action to every id and returns the number of accounts
// affected.
func (s *Service) Bulk(ctx context.Context, t models.AccountType, action string, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.Invalid("Aucun identifiant fourni")
	}
	yes, no := true, false

	var update models.AccountUpdate
	switch action {
	case ActionBlock:
		update.IsBlocked = &yes
	case ActionUnblock:
		update.IsBlocked = &no
	case ActionArchive:
		update.IsArchived = &yes
	case ActionUnarchive:
		update.IsArchived = &no
	case ActionDelete:
		n, err := s.store.DeleteAccounts(ctx, t, ids)
		if err != nil {
			return 0, apperr.Internal("Erreur lors de l'action groupée", err)
		}
		s.log.Info().Str("type", string(t)).Int64("count", n).Msg("bulk delete")
		return n, nil
	default:
		return 0, apperr.Invalid("Action invalide")
	}

	n, err := s.store.UpdateAccounts(ctx, t, ids, update)
	if err != nil {
		return 0, apperr.Internal("Erreur lors de l'action groupée", err)
	}
	s.log.Info().Str("type", string(t)).Str("action", action).Int64("count", n).Msg("bulk action")
	return n, nil
}

func (s *Service) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la récupération des administrateurs", err)
	}
	return admins, nil
}

func (s *Service) CreateAdmin(ctx context.Context, email, password, name string) (*models.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < 6 {
		return nil, apperr.Invalid("Email et mot de passe (6 caractères minimum) requis")
	}
	taken, err := s.store.EmailTaken(ctx, email)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la création de l'administrateur", err)
	}
	if taken {
		return nil, apperr.Conflict("Cet email est déjà utilisé")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la création de l'administrateur", err)
	}

	now := s.now()
	admin := &models.Admin{
		Account: models.Account{
			ID:           primitive.NewObjectID(),
			Email:        email,
			PasswordHash: hash,
			IsVerified:   true,
			IsApproved:   true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Name: strings.TrimSpace(name),
	}
	if err := s.store.InsertAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("Cet email est déjà utilisé")
		}
		return nil, apperr.Internal("Erreur lors de la création de l'administrateur", err)
	}
	s.log.Info().Str("id", admin.ID.Hex()).Msg("admin created")
	return admin, nil
}

// DeleteAdmin removes another admin; admins cannot delete themselves.
func (s *Service) DeleteAdmin(ctx context.Context, self, id primitive.ObjectID) error {
	if self == id {
		return apperr.Invalid("Vous ne pouvez pas supprimer votre propre compte")
	}
	return s.Delete(ctx, models.AccountAdmin, id)
}

func (s *Service) Statistics(ctx context.Context) (*models.Statistics, error) {
	stats := &models.Statistics{}
	pending := false

	counts := []struct {
		dst *int64
		t   models.AccountType
		f   models.AccountFilter
	}{
		{&stats.Users, models.AccountUser, models.AccountFilter{}},
		{&stats.Translataires, models.AccountTranslataire, models.AccountFilter{}},
		{&stats.PendingTranslataires, models.AccountTranslataire, models.AccountFilter{Approved: &pending}},
		{&stats.Admins, models.AccountAdmin, models.AccountFilter{}},
	}
	for _, c := range counts {
		n, err := s.store.CountAccounts(ctx, c.t, c.f)
		if err != nil {
			return nil, apperr.Internal("Erreur lors du calcul des statistiques", err)
		}
		*c.dst = n
	}

	reviews, err := s.store.CountReviews(ctx)
	if err != nil {
		return nil, apperr.Internal("Erreur lors du calcul des statistiques", err)
	}
	stats.Reviews = reviews

	byStatut, err := s.store.CountDevisByStatut(ctx)
	if err != nil {
		return nil, apperr.Internal("Erreur lors du calcul des statistiques", err)
	}
	stats.DevisByStatut = byStatut
	for _, n := range byStatut {
		stats.DevisTotal += n
	}
	return stats, nil
}
