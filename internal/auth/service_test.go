package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"senfret/internal/apperr"
	"senfret/internal/models"
	"senfret/internal/notify"
	"senfret/internal/store/memory"
)

type fakeGoogle struct {
	profile *GoogleProfile
	err     error
}

func (f fakeGoogle) Verify(context.Context, string) (*GoogleProfile, error) {
	return f.profile, f.err
}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	s := memory.New()
	svc := NewService(s, NewTokens("test-secret", time.Hour), notify.NewOutbox(s), fakeGoogle{err: errors.New("unused")}, Settings{
		PublicBaseURL: "http://api.test",
		FrontendURL:   "http://app.test",
	})
	return svc, s
}

func lastMailLink(t *testing.T, s *memory.Store, marker string) string {
	t.Helper()
	msgs := s.Outbox()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Email == nil {
			continue
		}
		if idx := strings.Index(msgs[i].Email.Body, marker); idx >= 0 {
			return strings.TrimSpace(msgs[i].Email.Body[idx+len(marker):])
		}
	}
	t.Fatalf("no mail containing %q", marker)
	return ""
}

func TestRegisterClientAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	user, err := svc.RegisterClient(ctx, ClientRegistration{
		Email: " Awa@Example.SN ", Password: "secret1", FirstName: "Awa", LastName: "Diop",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "awa@example.sn" || user.PasswordHash == "secret1" {
		t.Fatalf("email not normalized or password stored in clear: %+v", user.Account)
	}

	_, err = svc.RegisterClient(ctx, ClientRegistration{Email: "awa@example.sn", Password: "secret1"})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	token := lastMailLink(t, s, "/api/auth/verify/")
	if err := svc.Verify(ctx, token); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if acc, _ := s.FindAccount(ctx, models.AccountUser, user.ID); !acc.IsVerified {
		t.Fatalf("account should be verified")
	}
	if err := svc.Verify(ctx, token); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("token must be single use, got %v", err)
	}

	if _, err := svc.Login(ctx, "awa@example.sn", "wrong", ""); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	session, err := svc.Login(ctx, "AWA@example.sn", "secret1", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Principal.Type != models.AccountUser || session.Principal.User == nil {
		t.Fatalf("unexpected principal %+v", session.Principal)
	}

	p, err := svc.Authenticate(ctx, session.Token)
	if err != nil || p.ID() != user.ID {
		t.Fatalf("authenticate: %v", err)
	}
}

func TestRegisterTranslataireNotifiesAdmins(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	in := TranslataireRegistration{Email: "f@transit.sn", Password: "secret1", CompanyName: "Dakar Transit"}
	if _, err := svc.RegisterTranslataire(ctx, in); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("NINEA must be required, got %v", err)
	}

	in.NINEA = "sn123"
	tr, err := svc.RegisterTranslataire(ctx, in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tr.IsApproved || tr.NINEA != "SN123" {
		t.Fatalf("forwarder must start unapproved with normalized NINEA: %+v", tr)
	}

	in.Email = "other@transit.sn"
	if _, err := svc.RegisterTranslataire(ctx, in); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected NINEA conflict, got %v", err)
	}

	var adminJobs int
	for _, m := range s.Outbox() {
		if m.Notification != nil && m.Notification.Audience == models.AudienceAdmins &&
			m.Notification.Type == models.NotifTranslataireRegistered {
			adminJobs++
		}
	}
	if adminJobs != 1 {
		t.Fatalf("expected one admin notification job, got %d", adminJobs)
	}
}

func TestBlockedAccountIsForbidden(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	user, err := svc.RegisterClient(ctx, ClientRegistration{Email: "c@x.sn", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	session, err := svc.Login(ctx, "c@x.sn", "secret1", models.AccountUser)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	blocked := true
	if err := s.UpdateAccount(ctx, models.AccountUser, user.ID, models.AccountUpdate{IsBlocked: &blocked}); err != nil {
		t.Fatalf("block: %v", err)
	}

	_, err = svc.Authenticate(ctx, session.Token)
	if apperr.KindOf(err) != apperr.KindForbidden || apperr.Message(err) != "Compte bloqué" {
		t.Fatalf("expected 403 Compte bloqué, got %v", err)
	}
	if _, err := svc.Login(ctx, "c@x.sn", "secret1", ""); apperr.Message(err) != "Compte bloqué" {
		t.Fatalf("blocked login must be refused, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.RegisterClient(ctx, ClientRegistration{Email: "c@x.sn", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	session, err := svc.Login(ctx, "c@x.sn", "secret1", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	p, err := svc.Authenticate(ctx, session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := svc.Logout(ctx, p); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, session.Token); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("revoked token must be rejected, got %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	if _, err := svc.RegisterClient(ctx, ClientRegistration{Email: "c@x.sn", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	before := len(s.Outbox())
	if err := svc.ForgotPassword(ctx, "unknown@x.sn"); err != nil {
		t.Fatalf("unknown address must not be reported: %v", err)
	}
	if len(s.Outbox()) != before {
		t.Fatalf("no mail expected for unknown address")
	}

	if err := svc.ForgotPassword(ctx, "c@x.sn"); err != nil {
		t.Fatalf("forgot: %v", err)
	}
	token := lastMailLink(t, s, "/reset-password/")

	if err := svc.ResetPassword(ctx, token, "123"); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("short password must be refused, got %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "nouveau1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Login(ctx, "c@x.sn", "nouveau1", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "encore12"); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("reset token must be single use, got %v", err)
	}
}

func TestGoogleLoginCreatesVerifiedClient(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	svc.google = fakeGoogle{profile: &GoogleProfile{Subject: "g-1", Email: "Moussa@gmail.com", GivenName: "Moussa", Verified: true}}

	session, err := svc.GoogleLogin(ctx, "id-token")
	if err != nil {
		t.Fatalf("google login: %v", err)
	}
	u := session.Principal.User
	if u == nil || !u.IsVerified || u.Email != "moussa@gmail.com" {
		t.Fatalf("unexpected user %+v", u)
	}

	again, err := svc.GoogleLogin(ctx, "id-token")
	if err != nil || again.Principal.ID() != u.ID {
		t.Fatalf("second login must reuse the account: %v", err)
	}
	users, total, _ := s.ListUsers(ctx, models.AccountFilter{})
	if total != 1 || len(users) != 1 {
		t.Fatalf("expected a single user, got %d", total)
	}
}

func TestTokensRejectForeignSignature(t *testing.T) {
	issuer := NewTokens("a", time.Hour)
	acc := &models.Account{Email: "x@y.sn"}
	raw, _, err := issuer.Issue(acc, models.AccountAdmin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokens("b", time.Hour).Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	expired := NewTokens("a", time.Hour)
	expired.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := expired.Parse(raw); err == nil {
		t.Fatalf("expired token must be rejected")
	}
}
