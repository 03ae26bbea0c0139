package moderation

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/apperr"
	"senfret/internal/models"
	"senfret/internal/notify"
	"senfret/internal/store/memory"
)

func seedUsers(t *testing.T, s *memory.Store, n int) []primitive.ObjectID {
	t.Helper()
	ids := make([]primitive.ObjectID, 0, n)
	for i := 0; i < n; i++ {
		u := &models.User{Account: models.Account{Email: primitive.NewObjectID().Hex() + "@client.sn"}}
		if err := s.InsertUser(context.Background(), u); err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, u.ID)
	}
	return ids
}

func TestToggleBlock(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s, notify.NewOutbox(s))
	id := seedUsers(t, s, 1)[0]

	blocked, err := svc.ToggleBlock(ctx, models.AccountUser, id)
	if err != nil || !blocked {
		t.Fatalf("first toggle: blocked=%v err=%v", blocked, err)
	}
	blocked, _ = svc.ToggleBlock(ctx, models.AccountUser, id)
	if blocked {
		t.Fatalf("second toggle must unblock")
	}
	if _, err := svc.ToggleBlock(ctx, models.AccountUser, primitive.NewObjectID()); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestApproveTranslataireNotifies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s, notify.NewOutbox(s))
	tr := &models.Translataire{Account: models.Account{Email: "f@transit.sn"}, CompanyName: "DT", NINEA: "SN9"}
	if err := s.InsertTranslataire(ctx, tr); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := svc.Approve(ctx, models.AccountTranslataire, tr.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	got, _ := s.GetTranslataire(ctx, tr.ID)
	if !got.IsApproved {
		t.Fatalf("translataire should be approved")
	}

	var notified, mailed bool
	for _, m := range s.Outbox() {
		if m.Notification != nil && m.Notification.Type == models.NotifAccountApproved {
			notified = len(m.Notification.Recipients) == 1 && m.Notification.Recipients[0].ID == tr.ID
		}
		if m.Email != nil && m.Email.To == "f@transit.sn" {
			mailed = true
		}
	}
	if !notified || !mailed {
		t.Fatalf("approval must notify and mail the forwarder (notified=%v mailed=%v)", notified, mailed)
	}
}

func TestBulkActions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s, notify.NewOutbox(s))
	ids := seedUsers(t, s, 3)

	if n, err := svc.Bulk(ctx, models.AccountUser, ActionArchive, ids[:2]); err != nil || n != 2 {
		t.Fatalf("archive: n=%d err=%v", n, err)
	}
	archived := true
	if _, total, _ := s.ListUsers(ctx, models.AccountFilter{Archived: &archived}); total != 2 {
		t.Fatalf("expected 2 archived users, got %d", total)
	}

	if _, err := svc.Bulk(ctx, models.AccountUser, "explode", ids); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("unknown action: expected 400, got %v", err)
	}
	if n, err := svc.Bulk(ctx, models.AccountUser, ActionDelete, ids); err != nil || n != 3 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
}

func TestParseIDs(t *testing.T) {
	if _, err := ParseIDs(nil); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("empty list must be rejected")
	}
	if _, err := ParseIDs([]string{primitive.NewObjectID().Hex(), "nope"}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("malformed id must be rejected")
	}
}

func TestAdminsAndStatistics(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := NewService(s, notify.NewOutbox(s))
	seedUsers(t, s, 2)
	if err := s.InsertTranslataire(ctx, &models.Translataire{Account: models.Account{Email: "p@transit.sn"}, NINEA: "SN5"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertDevis(ctx, &models.Devis{Statut: models.StatutEnAttente}); err != nil {
		t.Fatalf("insert devis: %v", err)
	}
	if err := s.InsertDevis(ctx, &models.Devis{Statut: models.StatutAccepte}); err != nil {
		t.Fatalf("insert devis: %v", err)
	}

	admin, err := svc.CreateAdmin(ctx, "Chef@Senfret.sn", "secret1", "Chef")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := svc.CreateAdmin(ctx, "chef@senfret.sn", "secret1", "Bis"); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("duplicate admin: expected 409, got %v", err)
	}
	if err := svc.DeleteAdmin(ctx, admin.ID, admin.ID); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("self delete must be refused, got %v", err)
	}

	stats, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Users != 2 || stats.Translataires != 1 || stats.PendingTranslataires != 1 || stats.Admins != 1 {
		t.Fatalf("unexpected account counts %+v", stats)
	}
	if stats.DevisTotal != 2 || stats.DevisByStatut[models.StatutAccepte] != 1 {
		t.Fatalf("unexpected devis counts %+v", stats)
	}
}
