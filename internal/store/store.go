// Package store declares the persistence contracts of the marketplace.
// internal/database implements them on MongoDB and store/memory in process.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/models"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrDuplicate       = errors.New("store: duplicate key")
	ErrVersionConflict = errors.New("store: version conflict")
)

type AccountStore interface {
	EmailTaken(ctx context.Context, email string) (bool, error)
	NineaTaken(ctx context.Context, ninea string) (bool, error)

	InsertUser(ctx context.Context, u *models.User) error
	InsertTranslataire(ctx context.Context, t *models.Translataire) error
	InsertAdmin(ctx context.Context, a *models.Admin) error

	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetTranslataire(ctx context.Context, id primitive.ObjectID) (*models.Translataire, error)
	GetAdmin(ctx context.Context, id primitive.ObjectID) (*models.Admin, error)
	FindTranslataireByCompanyName(ctx context.Context, name string) (*models.Translataire, error)

	// FindAccount looks up the shared account fields of any actor type.
	FindAccount(ctx context.Context, t models.AccountType, id primitive.ObjectID) (*models.Account, error)
	FindAccountByEmail(ctx context.Context, t models.AccountType, email string) (*models.Account, error)
	FindAccountByVerificationToken(ctx context.Context, hash string) (models.AccountType, *models.Account, error)
	FindAccountByResetToken(ctx context.Context, hash string, now time.Time) (models.AccountType, *models.Account, error)

	UpdateAccount(ctx context.Context, t models.AccountType, id primitive.ObjectID, u models.AccountUpdate) error
	UpdateAccounts(ctx context.Context, t models.AccountType, ids []primitive.ObjectID, u models.AccountUpdate) (int64, error)
	DeleteAccounts(ctx context.Context, t models.AccountType, ids []primitive.ObjectID) (int64, error)

	ListUsers(ctx context.Context, f models.AccountFilter) ([]models.User, int64, error)
	ListTranslataires(ctx context.Context, f models.AccountFilter) ([]models.Translataire, int64, error)
	ListAdmins(ctx context.Context) ([]models.Admin, error)
	AdminIDs(ctx context.Context) ([]primitive.ObjectID, error)
	CountAccounts(ctx context.Context, t models.AccountType, f models.AccountFilter) (int64, error)

	SetTranslataireRating(ctx context.Context, id primitive.ObjectID, summary models.RatingSummary) error
}

type DevisStore interface {
	InsertDevis(ctx context.Context, d *models.Devis) error
	GetDevis(ctx context.Context, id primitive.ObjectID) (*models.Devis, error)
	// FindDevisForClient matches on both the quote id and its client, so a
	// quote owned by someone else is reported as ErrNotFound.
	FindDevisForClient(ctx context.Context, id, clientID primitive.ObjectID) (*models.Devis, error)
	FindDevisForTranslataire(ctx context.Context, id, translataireID primitive.ObjectID) (*models.Devis, error)
	ListDevis(ctx context.Context, f models.DevisFilter) ([]models.Devis, int64, error)
	// UpdateDevis persists d if its stored version still equals d.Version and
	// increments the version. ErrVersionConflict otherwise.
	UpdateDevis(ctx context.Context, d *models.Devis) error
	DeleteDevis(ctx context.Context, id primitive.ObjectID) error
	ListExpiredDevis(ctx context.Context, now time.Time, limit int64) ([]models.Devis, error)
	CountDevisByStatut(ctx context.Context) (map[models.Statut]int64, error)
}

type ReviewStore interface {
	// InsertReview returns ErrDuplicate when the (translataire, user) pair
	// already has a review.
	InsertReview(ctx context.Context, r *models.Review) error
	GetReview(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	UpdateReview(ctx context.Context, r *models.Review) error
	DeleteReview(ctx context.Context, id primitive.ObjectID) error
	ListReviewsByTranslataire(ctx context.Context, translataireID primitive.ObjectID, approvedOnly bool) ([]models.Review, error)
	ListReviewsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Review, error)
	// RatingSummary aggregates approved reviews of one forwarder.
	RatingSummary(ctx context.Context, translataireID primitive.ObjectID) (models.RatingSummary, error)
	CountReviews(ctx context.Context) (int64, error)
}

type NotificationStore interface {
	// InsertNotifications skips notifications already written for the same
	// outbox message and recipient and returns the ones it wrote.
	InsertNotifications(ctx context.Context, ns []models.Notification) ([]models.Notification, error)
	ListNotifications(ctx context.Context, f models.NotificationFilter) ([]models.Notification, int64, error)
	CountUnread(ctx context.Context, recipientType models.AccountType, recipientID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id primitive.ObjectID, recipientType models.AccountType, recipientID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, recipientType models.AccountType, recipientID primitive.ObjectID) (int64, error)
}

type OutboxStore interface {
	EnqueueOutbox(ctx context.Context, m *models.OutboxMessage) error
	// ClaimOutbox leases up to limit due messages until now+lease.
	ClaimOutbox(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.OutboxMessage, error)
	CompleteOutbox(ctx context.Context, id primitive.ObjectID) error
	FailOutbox(ctx context.Context, id primitive.ObjectID, attempts int, next time.Time, lastErr string, dead bool) error
}

type TokenStore interface {
	BlacklistToken(ctx context.Context, hash string, expiresAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, hash string) (bool, error)
}

// Store bundles every collection the application uses.
type Store interface {
	AccountStore
	DevisStore
	ReviewStore
	NotificationStore
	OutboxStore
	TokenStore
}

// Page normalizes pagination values (page >= 1, 1 <= limit <= 100).
func Page(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
