package devis

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/apperr"
	"senfret/internal/models"
	"senfret/internal/notify"
	"senfret/internal/store/memory"
)

type recordingRemover struct {
	removed []string
}

func (r *recordingRemover) DeleteAll(urls []string) {
	r.removed = append(r.removed, urls...)
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	svc     *Service
	files   *recordingRemover
	client  *models.User
	other   *models.User
	forward *models.Translataire
	admins  []primitive.ObjectID
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	f := &fixture{
		ctx:   ctx,
		store: s,
		files: &recordingRemover{},
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(s, notify.NewOutbox(s), f.files, 7*24*time.Hour)
	f.svc.now = func() time.Time { return f.now }

	f.client = &models.User{Account: models.Account{Email: "awa@client.sn", IsApproved: true}, FirstName: "Awa", LastName: "Diop"}
	f.other = &models.User{Account: models.Account{Email: "ibou@client.sn", IsApproved: true}, FirstName: "Ibou"}
	f.forward = &models.Translataire{Account: models.Account{Email: "contact@dakartransit.sn", IsApproved: true}, CompanyName: "Dakar Transit", NINEA: "SN001"}
	for _, u := range []*models.User{f.client, f.other} {
		if err := s.InsertUser(ctx, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	if err := s.InsertTranslataire(ctx, f.forward); err != nil {
		t.Fatalf("insert translataire: %v", err)
	}
	for _, email := range []string{"a1@senfret.sn", "a2@senfret.sn"} {
		a := &models.Admin{Account: models.Account{Email: email}}
		if err := s.InsertAdmin(ctx, a); err != nil {
			t.Fatalf("insert admin: %v", err)
		}
		f.admins = append(f.admins, a.ID)
	}
	return f
}

func (f *fixture) request(t *testing.T, mutate ...func(*RequestInput)) *models.Devis {
	t.Helper()
	in := RequestInput{
		Translataire: f.forward.ID.Hex(),
		TypeService:  "maritime",
		Description:  "20 pieds Dakar - Marseille",
		Origin:       "Dakar",
		Destination:  "Marseille",
		Files:        []string{"http://api.test/uploads/devis/a.pdf"},
	}
	for _, m := range mutate {
		m(&in)
	}
	d, err := f.svc.Request(f.ctx, f.client, in)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return d
}

// deliver runs the outbox once so notifications land in the store.
func (f *fixture) deliver(t *testing.T) []models.Notification {
	t.Helper()
	w := notify.NewWorker(f.store, notify.NewDispatcher(f.store, notify.NewHub(8), notify.NewLogMailer(), nil), time.Second, 3)
	if _, err := w.ProcessOnce(f.ctx); err != nil {
		t.Fatalf("process outbox: %v", err)
	}
	return f.store.Notifications()
}

func countFor(ns []models.Notification, t models.AccountType, id primitive.ObjectID, typ string) int {
	n := 0
	for _, x := range ns {
		if x.RecipientType == t && x.RecipientID == id && x.Type == typ {
			n++
		}
	}
	return n
}

func emailsTo(s *memory.Store, to string) int {
	n := 0
	for _, m := range s.Outbox() {
		if m.Email != nil && m.Email.To == to {
			n++
		}
	}
	return n
}

func TestRequestNotifiesAdminsAndMailsForwarder(t *testing.T) {
	f := newFixture(t)
	d := f.request(t)

	if d.Statut != models.StatutEnAttente {
		t.Fatalf("expected en_attente, got %s", d.Statut)
	}
	if !d.ExpiresAt.Equal(f.now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected default expiry in 7 days, got %v", d.ExpiresAt)
	}
	if emailsTo(f.store, f.forward.Email) != 1 {
		t.Fatalf("expected one mail to the forwarder")
	}

	ns := f.deliver(t)
	for _, admin := range f.admins {
		if countFor(ns, models.AccountAdmin, admin, models.NotifDevisCreated) != 1 {
			t.Fatalf("admin %s missing devis_created notification", admin.Hex())
		}
	}
	if len(ns) != len(f.admins) {
		t.Fatalf("expected exactly one notification per admin, got %d", len(ns))
	}
}

func TestRequestFromBulkIntakeSkipsMail(t *testing.T) {
	f := newFixture(t)
	f.request(t, func(in *RequestInput) { in.DevisOrigin = models.OriginNouveauDevis })
	if emailsTo(f.store, f.forward.Email) != 0 {
		t.Fatalf("nouveau-devis requests must not mail the forwarder")
	}
}

func TestRequestByCompanyName(t *testing.T) {
	f := newFixture(t)
	d := f.request(t, func(in *RequestInput) { in.Translataire = "Dakar Transit" })
	if d.TranslataireID != f.forward.ID {
		t.Fatalf("quote addressed to wrong forwarder")
	}
}

func TestRequestRequiresApprovedForwarder(t *testing.T) {
	f := newFixture(t)
	pending := &models.Translataire{Account: models.Account{Email: "p@transit.sn"}, CompanyName: "Pending", NINEA: "SN002"}
	if err := f.store.InsertTranslataire(f.ctx, pending); err != nil {
		t.Fatalf("insert: %v", err)
	}

	archived := &models.Translataire{
		Account:     models.Account{Email: "a@transit.sn", IsApproved: true, IsArchived: true},
		CompanyName: "Archived",
		NINEA:       "SN003",
	}
	if err := f.store.InsertTranslataire(f.ctx, archived); err != nil {
		t.Fatalf("insert: %v", err)
	}

	for _, ref := range []string{pending.ID.Hex(), "Pending", archived.ID.Hex(), "Archived", primitive.NewObjectID().Hex(), "Inconnu"} {
		_, err := f.svc.Request(f.ctx, f.client, RequestInput{Translataire: ref, TypeService: "aérien", Description: "x"})
		if apperr.KindOf(err) != apperr.KindNotFound {
			t.Fatalf("ref %q: expected not found, got %v", ref, err)
		}
	}
}

func TestClientMutationsRequirePendingStatus(t *testing.T) {
	for _, statut := range []models.Statut{models.StatutAccepte, models.StatutRefuse, models.StatutAnnule, models.StatutArchive} {
		f := newFixture(t)
		d := f.request(t)
		d.Statut = statut
		if err := f.store.UpdateDevis(f.ctx, d); err != nil {
			t.Fatalf("force status: %v", err)
		}

		desc := "nouvelle description"
		_, err := f.svc.Update(f.ctx, f.client.ID, d.ID, UpdateInput{Description: &desc})
		if apperr.KindOf(err) != apperr.KindInvalid {
			t.Fatalf("update on %s: expected 400, got %v", statut, err)
		}
		if _, err := f.svc.Cancel(f.ctx, f.client.ID, d.ID); apperr.KindOf(err) != apperr.KindInvalid {
			t.Fatalf("cancel on %s: expected 400, got %v", statut, err)
		}
	}
}

func TestDeleteIgnoresStatus(t *testing.T) {
	for _, statut := range []models.Statut{models.StatutEnAttente, models.StatutAccepte, models.StatutArchive} {
		f := newFixture(t)
		d := f.request(t)
		d.Statut = statut
		if err := f.store.UpdateDevis(f.ctx, d); err != nil {
			t.Fatalf("force status: %v", err)
		}
		if err := f.svc.Delete(f.ctx, f.client.ID, d.ID); err != nil {
			t.Fatalf("delete on %s: %v", statut, err)
		}
		if _, err := f.store.GetDevis(f.ctx, d.ID); err == nil {
			t.Fatalf("quote still present after delete on %s", statut)
		}
		if len(f.files.removed) != 1 {
			t.Fatalf("attachments must be removed with the quote")
		}
	}
}

func TestForeignClientGetsNotFound(t *testing.T) {
	f := newFixture(t)
	d := f.request(t)

	desc := "hijack"
	checks := map[string]error{}
	_, checks["get"] = f.svc.GetForClient(f.ctx, f.other.ID, d.ID)
	_, checks["update"] = f.svc.Update(f.ctx, f.other.ID, d.ID, UpdateInput{Description: &desc})
	_, checks["cancel"] = f.svc.Cancel(f.ctx, f.other.ID, d.ID)
	checks["delete"] = f.svc.Delete(f.ctx, f.other.ID, d.ID)
	for op, err := range checks {
		if apperr.KindOf(err) != apperr.KindNotFound {
			t.Fatalf("%s by foreign client: expected 404, got %v", op, err)
		}
	}
}

func TestUpdateAppliesAllowListAndReplacesFiles(t *testing.T) {
	f := newFixture(t)
	d := f.request(t)

	empty, origin := "  ", "Thiès"
	weight, fragile := 1200.5, true
	updated, err := f.svc.Update(f.ctx, f.client.ID, d.ID, UpdateInput{
		Description: &empty,
		Origin:      &origin,
		Weight:      &weight,
		Fragile:     &fragile,
		Files:       []string{"http://api.test/uploads/devis/b.pdf"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Description != d.Description {
		t.Fatalf("blank values must be ignored")
	}
	if updated.Origin != "Thiès" || updated.Shipment == nil || updated.Shipment.Weight != 1200.5 || !updated.Shipment.Fragile {
		t.Fatalf("fields not applied: %+v", updated)
	}
	if len(updated.ClientFiles) != 1 || updated.ClientFiles[0] != "http://api.test/uploads/devis/b.pdf" {
		t.Fatalf("attachment not replaced: %v", updated.ClientFiles)
	}
	if len(f.files.removed) != 1 || f.files.removed[0] != "http://api.test/uploads/devis/a.pdf" {
		t.Fatalf("old attachment must be deleted, got %v", f.files.removed)
	}

	ns := f.deliver(t)
	if countFor(ns, models.AccountTranslataire, f.forward.ID, models.NotifDevisUpdated) != 1 {
		t.Fatalf("forwarder must be notified of the update")
	}
}

func TestCancelNotifiesForwarderAndAdmins(t *testing.T) {
	f := newFixture(t)
	d := f.request(t)
	f.deliver(t)

	cancelled, err := f.svc.Cancel(f.ctx, f.client.ID, d.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Statut != models.StatutAnnule {
		t.Fatalf("expected annule, got %s", cancelled.Statut)
	}

	ns := f.deliver(t)
	if countFor(ns, models.AccountTranslataire, f.forward.ID, models.NotifDevisCancelled) != 1 {
		t.Fatalf("expected one notification to the forwarder")
	}
	for _, admin := range f.admins {
		if countFor(ns, models.AccountAdmin, admin, models.NotifDevisCancelled) != 1 {
			t.Fatalf("expected one notification to admin %s", admin.Hex())
		}
	}
}

func TestStaleVersionIsConflict(t *testing.T) {
	f := newFixture(t)
	d := f.request(t)

	stale, _ := f.store.GetDevis(f.ctx, d.ID)
	if _, err := f.svc.Cancel(f.ctx, f.client.ID, d.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stale.Statut = models.StatutAccepte
	if err := f.svc.save(f.ctx, stale); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected 409 on stale write, got %v", err)
	}
}

func TestRespond(t *testing.T) {
	f := newFixture(t)
	d := f.request(t)

	if _, err := f.svc.Respond(f.ctx, f.forward, d.ID, ResponseInput{Statut: models.StatutAccepte, Reponse: "ok"}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("acceptance without amount must fail, got %v", err)
	}
	if _, err := f.svc.Respond(f.ctx, f.forward, d.ID, ResponseInput{Statut: models.StatutAnnule, Reponse: "x"}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("forwarder cannot cancel, got %v", err)
	}

	intruder := &models.Translataire{Account: models.Account{ID: primitive.NewObjectID(), IsApproved: true}}
	if _, err := f.svc.Respond(f.ctx, intruder, d.ID, ResponseInput{Statut: models.StatutRefuse, Reponse: "non"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("foreign forwarder: expected 404, got %v", err)
	}

	answered, err := f.svc.Respond(f.ctx, f.forward, d.ID, ResponseInput{
		Statut:  models.StatutAccepte,
		Montant: 450000,
		Reponse: "Départ le 12",
		Files:   []string{"http://api.test/uploads/devis/offre.pdf"},
	})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if answered.Statut != models.StatutAccepte || answered.Montant != 450000 || answered.RespondedAt == nil {
		t.Fatalf("unexpected answer %+v", answered)
	}
	if _, err := f.svc.Respond(f.ctx, f.forward, d.ID, ResponseInput{Statut: models.StatutRefuse, Reponse: "non"}); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("second response must fail, got %v", err)
	}

	if emailsTo(f.store, f.client.Email) != 1 {
		t.Fatalf("client must be mailed the response")
	}
	ns := f.deliver(t)
	if countFor(ns, models.AccountUser, f.client.ID, models.NotifDevisAccepted) != 1 {
		t.Fatalf("client must be notified of the acceptance")
	}

	unapproved := *f.forward
	unapproved.IsApproved = false
	if _, err := f.svc.Respond(f.ctx, &unapproved, d.ID, ResponseInput{Statut: models.StatutRefuse, Reponse: "x"}); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("unapproved forwarder: expected 403, got %v", err)
	}
}

func TestArchiveAndSweep(t *testing.T) {
	f := newFixture(t)
	old := f.request(t)
	fresh := f.request(t, func(in *RequestInput) {
		at := f.now.Add(30 * 24 * time.Hour)
		in.ExpiresAt = &at
	})

	f.now = f.now.Add(8 * 24 * time.Hour)
	n, err := f.svc.SweepExpired(f.ctx, f.now)
	if err != nil || n != 1 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}
	if d, _ := f.store.GetDevis(f.ctx, old.ID); d.Statut != models.StatutArchive {
		t.Fatalf("expired quote must be archived, got %s", d.Statut)
	}
	if d, _ := f.store.GetDevis(f.ctx, fresh.ID); d.Statut != models.StatutEnAttente {
		t.Fatalf("fresh quote must stay pending, got %s", d.Statut)
	}
	ns := f.deliver(t)
	if countFor(ns, models.AccountUser, f.client.ID, models.NotifDevisExpired) != 1 {
		t.Fatalf("client must be told about the expiry")
	}

	if _, err := f.svc.Archive(f.ctx, old.ID); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("archiving twice must fail, got %v", err)
	}
	archived, err := f.svc.Archive(f.ctx, fresh.ID)
	if err != nil || archived.Statut != models.StatutArchive {
		t.Fatalf("archive: %v", err)
	}
	if err := f.svc.AdminDelete(f.ctx, fresh.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}
