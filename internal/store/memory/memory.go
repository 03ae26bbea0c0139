// Package memory is an in-process implementation of store.Store with the
// same uniqueness and versioning rules as the MongoDB one.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/models"
	"senfret/internal/store"
)

type Store struct {
	mu sync.RWMutex

	users         map[primitive.ObjectID]*models.User
	translataires map[primitive.ObjectID]*models.Translataire
	admins        map[primitive.ObjectID]*models.Admin
	devis         map[primitive.ObjectID]*models.Devis
	reviews       map[primitive.ObjectID]*models.Review
	notifications []models.Notification
	outbox        map[primitive.ObjectID]*models.OutboxMessage
	tokens        map[string]time.Time

	// Now is used for token expiry checks; tests may override it.
	Now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:         map[primitive.ObjectID]*models.User{},
		translataires: map[primitive.ObjectID]*models.Translataire{},
		admins:        map[primitive.ObjectID]*models.Admin{},
		devis:         map[primitive.ObjectID]*models.Devis{},
		reviews:       map[primitive.ObjectID]*models.Review{},
		outbox:        map[primitive.ObjectID]*models.OutboxMessage{},
		tokens:        map[string]time.Time{},
		Now:           time.Now,
	}
}

func done(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func paginate[T any](items []T, page, limit int64) []T {
	page, limit = store.Page(page, limit)
	start := (page - 1) * limit
	if start >= int64(len(items)) {
		return []T{}
	}
	end := start + limit
	if end > int64(len(items)) {
		end = int64(len(items))
	}
	return items[start:end]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func ensureID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func sortNewestFirst[T any](items []T, created func(T) time.Time, id func(T) primitive.ObjectID) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(items[i]).Hex() > id(items[j]).Hex()
	})
}
