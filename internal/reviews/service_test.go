package reviews

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/apperr"
	"senfret/internal/models"
	"senfret/internal/notify"
	"senfret/internal/store/memory"
)

func setup(t *testing.T, clients int) (*Service, *memory.Store, *models.Translataire, []*models.User) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	tr := &models.Translataire{Account: models.Account{Email: "f@transit.sn", IsApproved: true}, CompanyName: "Dakar Transit", NINEA: "SN1"}
	if err := s.InsertTranslataire(ctx, tr); err != nil {
		t.Fatalf("insert translataire: %v", err)
	}
	users := make([]*models.User, 0, clients)
	for i := 0; i < clients; i++ {
		u := &models.User{Account: models.Account{Email: primitive.NewObjectID().Hex() + "@client.sn"}, FirstName: "Client"}
		if err := s.InsertUser(ctx, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
		users = append(users, u)
	}
	return NewService(s, notify.NewOutbox(s)), s, tr, users
}

func rating(t *testing.T, s *memory.Store, id primitive.ObjectID) (float64, int) {
	t.Helper()
	tr, err := s.GetTranslataire(context.Background(), id)
	if err != nil {
		t.Fatalf("get translataire: %v", err)
	}
	return tr.AvgRating, tr.RatingsCount
}

func TestCreateRecomputesRating(t *testing.T) {
	ctx := context.Background()
	svc, s, tr, users := setup(t, 3)

	for i, score := range []int{5, 4, 4} {
		if _, err := svc.Create(ctx, users[i], CreateInput{TranslataireID: tr.ID, Rating: score}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	avg, count := rating(t, s, tr.ID)
	if avg != 4.3 || count != 3 {
		t.Fatalf("expected 4.3 over 3 reviews, got %v over %d", avg, count)
	}
}

func TestDuplicateReviewIsConflict(t *testing.T) {
	ctx := context.Background()
	svc, _, tr, users := setup(t, 1)

	if _, err := svc.Create(ctx, users[0], CreateInput{TranslataireID: tr.ID, Rating: 3}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := svc.Create(ctx, users[0], CreateInput{TranslataireID: tr.ID, Rating: 5})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestRatingBounds(t *testing.T) {
	svc, _, tr, users := setup(t, 1)
	for _, r := range []int{0, 6} {
		_, err := svc.Create(context.Background(), users[0], CreateInput{TranslataireID: tr.ID, Rating: r})
		if apperr.KindOf(err) != apperr.KindInvalid {
			t.Fatalf("rating %d: expected 400, got %v", r, err)
		}
	}
}

func TestUpdateDeleteAndApprovalKeepRatingInSync(t *testing.T) {
	ctx := context.Background()
	svc, s, tr, users := setup(t, 2)

	first, _ := svc.Create(ctx, users[0], CreateInput{TranslataireID: tr.ID, Rating: 2})
	second, _ := svc.Create(ctx, users[1], CreateInput{TranslataireID: tr.ID, Rating: 5})

	five := 5
	if _, err := svc.Update(ctx, users[1].ID, first.ID, UpdateInput{Rating: &five}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("editing someone else's review: expected 403, got %v", err)
	}
	if _, err := svc.Update(ctx, users[0].ID, first.ID, UpdateInput{Rating: &five}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if avg, count := rating(t, s, tr.ID); avg != 5 || count != 2 {
		t.Fatalf("after update: %v/%d", avg, count)
	}

	if _, err := svc.SetApproval(ctx, second.ID, false); err != nil {
		t.Fatalf("disapprove: %v", err)
	}
	if avg, count := rating(t, s, tr.ID); avg != 5 || count != 1 {
		t.Fatalf("unapproved reviews must not count: %v/%d", avg, count)
	}
	public, _ := svc.ListForTranslataire(ctx, tr.ID)
	if len(public) != 1 {
		t.Fatalf("public listing must hide unapproved reviews, got %d", len(public))
	}

	if err := svc.Delete(ctx, models.AccountUser, users[1].ID, first.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("deleting someone else's review: expected 403, got %v", err)
	}
	if err := svc.Delete(ctx, models.AccountAdmin, primitive.NewObjectID(), first.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if avg, count := rating(t, s, tr.ID); avg != 0 || count != 0 {
		t.Fatalf("no approved review left, got %v/%d", avg, count)
	}
}
