// Package reviews manages client reviews of forwarders and keeps each
// forwarder's cached rating in sync with its approved reviews.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/apperr"
	"senfret/internal/logging"
	"senfret/internal/models"
	"senfret/internal/notify"
	"senfret/internal/store"
)

type reviewStore interface {
	store.ReviewStore
	GetTranslataire(ctx context.Context, id primitive.ObjectID) (*models.Translataire, error)
	SetTranslataireRating(ctx context.Context, id primitive.ObjectID, summary models.RatingSummary) error
}

type Service struct {
	store  reviewStore
	outbox *notify.Outbox
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(s reviewStore, outbox *notify.Outbox) *Service {
	return &Service{store: s, outbox: outbox, now: time.Now, log: logging.New("reviews")}
}

var errReviewNotFound = apperr.NotFound("Avis non trouvé")

type CreateInput struct {
	TranslataireID primitive.ObjectID
	Rating         int
	Comment        string
	Attachments    []string
}

// UpdateInput changes an existing review; nil fields are kept.
type UpdateInput struct {
	Rating      *int
	Comment     *string
	Attachments []string
}

func checkRating(r int) error {
	if r < 1 || r > 5 {
		return apperr.Invalid("La note doit être comprise entre 1 et 5")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, author *models.User, in CreateInput) (*models.Review, error) {
	if err := checkRating(in.Rating); err != nil {
		return nil, err
	}
	t, err := s.store.GetTranslataire(ctx, in.TranslataireID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Transitaire non trouvé")
	}
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la création de l'avis", err)
	}

	now := s.now()
	r := &models.Review{
		ID:             primitive.NewObjectID(),
		TranslataireID: t.ID,
		UserID:         author.ID,
		Rating:         in.Rating,
		Comment:        strings.TrimSpace(in.Comment),
		Attachments:    in.Attachments,
		IsApproved:     true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertReview(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("Vous avez déjà laissé un avis pour ce transitaire")
		}
		return nil, apperr.Internal("Erreur lors de la création de l'avis", err)
	}
	if err := s.Recompute(ctx, t.ID); err != nil {
		return nil, err
	}

	s.outbox.Notify(ctx, r.ID.Hex(), notify.To(models.AccountTranslataire, t.ID, models.NotificationJob{
		Type:    models.NotifReviewCreated,
		Title:   "Nouvel avis",
		Message: fmt.Sprintf("%s vous a attribué la note de %d/5", author.FullName(), r.Rating),
		Data:    map[string]string{"reviewId": r.ID.Hex(), "translataireId": t.ID.Hex()},
	}))
	return r, nil
}

func (s *Service) ListForTranslataire(ctx context.Context, translataireID primitive.ObjectID) ([]models.Review, error) {
	reviews, err := s.store.ListReviewsByTranslataire(ctx, translataireID, true)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la récupération des avis", err)
	}
	return reviews, nil
}

func (s *Service) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Review, error) {
	reviews, err := s.store.ListReviewsByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la récupération des avis", err)
	}
	return reviews, nil
}

func (s *Service) get(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	r, err := s.store.GetReview(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errReviewNotFound
	}
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la récupération de l'avis", err)
	}
	return r, nil
}

// Update edits a review owned by userID.
func (s *Service) Update(ctx context.Context, userID, id primitive.ObjectID, in UpdateInput) (*models.Review, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, apperr.Forbidden("Vous ne pouvez modifier que vos propres avis")
	}
	if in.Rating != nil {
		if err := checkRating(*in.Rating); err != nil {
			return nil, err
		}
		r.Rating = *in.Rating
	}
	if in.Comment != nil {
		r.Comment = strings.TrimSpace(*in.Comment)
	}
	if len(in.Attachments) > 0 {
		r.Attachments = in.Attachments
	}
	r.UpdatedAt = s.now()

	if err := s.store.UpdateReview(ctx, r); err != nil {
		return nil, apperr.Internal("Erreur lors de la mise à jour de l'avis", err)
	}
	if err := s.Recompute(ctx, r.TranslataireID); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a review. Admins may delete any review, clients only theirs.
func (s *Service) Delete(ctx context.Context, actorType models.AccountType, actorID, id primitive.ObjectID) error {
	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if actorType != models.AccountAdmin && r.UserID != actorID {
		return apperr.Forbidden("Vous ne pouvez supprimer que vos propres avis")
	}
	if err := s.store.DeleteReview(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errReviewNotFound
		}
		return apperr.Internal("Erreur lors de la suppression de l'avis", err)
	}
	return s.Recompute(ctx, r.TranslataireID)
}

// SetApproval is the admin moderation switch of a review.
func (s *Service) SetApproval(ctx context.Context, id primitive.ObjectID, approved bool) (*models.Review, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.IsApproved = approved
	r.UpdatedAt = s.now()
	if err := s.store.UpdateReview(ctx, r); err != nil {
		return nil, apperr.Internal("Erreur lors de la modération de l'avis", err)
	}
	if err := s.Recompute(ctx, r.TranslataireID); err != nil {
		return nil, err
	}
	return r, nil
}

// Recompute overwrites the forwarder's avgRating (one decimal) and
// ratingsCount from its approved reviews.
func (s *Service) Recompute(ctx context.Context, translataireID primitive.ObjectID) error {
	summary, err := s.store.RatingSummary(ctx, translataireID)
	if err != nil {
		return apperr.Internal("Erreur lors du calcul de la note", err)
	}
	summary.Average = math.Round(summary.Average*10) / 10
	if err := s.store.SetTranslataireRating(ctx, translataireID, summary); err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal("Erreur lors du calcul de la note", err)
	}
	s.log.Debug().Str("translataire", translataireID.Hex()).Float64("avg", summary.Average).Int("count", summary.Count).Msg("rating recomputed")
	return nil
}
