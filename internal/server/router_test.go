package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"senfret/internal/auth"
	"senfret/internal/devis"
	"senfret/internal/models"
	"senfret/internal/moderation"
	"senfret/internal/notify"
	"senfret/internal/reviews"
	"senfret/internal/store/memory"
	"senfret/internal/uploads"
)

const password = "secret1"

type noGoogle struct{}

func (noGoogle) Verify(context.Context, string) (*auth.GoogleProfile, error) {
	return nil, errors.New("google sign-in disabled")
}

type testEnv struct {
	t      *testing.T
	store  *memory.Store
	hub    *notify.Hub
	files  *uploads.Storage
	worker *notify.Worker
	router *gin.Engine

	client, other          *models.User
	forwarder, pending     *models.Translataire
	admin                  *models.Admin
	clientTok, otherTok    string
	forwarderTok, adminTok string
	pendingTok             string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := memory.New()
	outbox := notify.NewOutbox(s)
	hub := notify.NewHub(8)
	files := uploads.NewStorage(t.TempDir(), "http://api.test")

	authSvc := auth.NewService(s, auth.NewTokens("router-secret", time.Hour), outbox, noGoogle{}, auth.Settings{
		PublicBaseURL: "http://api.test",
		FrontendURL:   "http://app.test",
	})
	env := &testEnv{
		t:      t,
		store:  s,
		hub:    hub,
		files:  files,
		worker: notify.NewWorker(s, notify.NewDispatcher(s, hub, notify.NewLogMailer(), nil), time.Second, 3),
	}
	env.router = NewRouter(Deps{
		Auth:          authSvc,
		Devis:         devis.NewService(s, outbox, files, 7*24*time.Hour),
		Reviews:       reviews.NewService(s, outbox),
		Moderation:    moderation.NewService(s, outbox),
		Notifications: s,
		Hub:           hub,
		Files:         files,
		KeepAlive:     time.Hour,
	})

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	account := func(email string, approved bool) models.Account {
		return models.Account{Email: email, PasswordHash: hash, IsVerified: true, IsApproved: approved}
	}

	ctx := context.Background()
	env.client = &models.User{Account: account("awa@client.sn", true), FirstName: "Awa", LastName: "Diop"}
	env.other = &models.User{Account: account("ibou@client.sn", true), FirstName: "Ibou"}
	env.forwarder = &models.Translataire{Account: account("contact@dakartransit.sn", true), CompanyName: "Dakar Transit", NINEA: "SN001"}
	env.pending = &models.Translataire{Account: account("hello@newfret.sn", false), CompanyName: "New Fret", NINEA: "SN002"}
	env.admin = &models.Admin{Account: account("admin@senfret.sn", true), Name: "Admin"}
	for _, u := range []*models.User{env.client, env.other} {
		if err := s.InsertUser(ctx, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	for _, tr := range []*models.Translataire{env.forwarder, env.pending} {
		if err := s.InsertTranslataire(ctx, tr); err != nil {
			t.Fatalf("insert translataire: %v", err)
		}
	}
	if err := s.InsertAdmin(ctx, env.admin); err != nil {
		t.Fatalf("insert admin: %v", err)
	}

	env.clientTok = env.login("awa@client.sn")
	env.otherTok = env.login("ibou@client.sn")
	env.forwarderTok = env.login("contact@dakartransit.sn")
	env.pendingTok = env.login("hello@newfret.sn")
	env.adminTok = env.login("admin@senfret.sn")
	return env
}

func (e *testEnv) login(email string) string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/auth/login", "", jsonBody(map[string]interface{}{
		"email": email, "password": password,
	}))
	if w.Code != http.StatusOK {
		e.t.Fatalf("login %s: %d %s", email, w.Code, w.Body.String())
	}
	return decode(e.t, w)["token"].(string)
}

type body struct {
	reader      *bytes.Buffer
	contentType string
}

func jsonBody(v interface{}) body {
	raw, _ := json.Marshal(v)
	return body{reader: bytes.NewBuffer(raw), contentType: "application/json"}
}

func multipartBody(fields map[string]string, files map[string]string) body {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}
	for name, content := range files {
		part, _ := writer.CreateFormFile(uploads.FieldMultiple, name)
		_, _ = part.Write([]byte(content))
	}
	_ = writer.Close()
	return body{reader: buf, contentType: writer.FormDataContentType()}
}

func (e *testEnv) do(method, url, token string, b ...body) *httptest.ResponseRecorder {
	e.t.Helper()
	var req *http.Request
	if len(b) > 0 {
		req = httptest.NewRequest(method, url, b[0].reader)
		req.Header.Set("Content-Type", b[0].contentType)
	} else {
		req = httptest.NewRequest(method, url, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) deliver() {
	e.t.Helper()
	if _, err := e.worker.ProcessOnce(context.Background()); err != nil {
		e.t.Fatalf("outbox: %v", err)
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func (e *testEnv) requestDevis() string {
	e.t.Helper()
	w := e.do(http.MethodPost, "/api/users/demande-devis/"+e.forwarder.ID.Hex(), e.clientTok, multipartBody(
		map[string]string{"typeService": "maritime", "description": "Conteneur 20 pieds", "poids": "1200"},
		map[string]string{"facture.pdf": "%PDF-1.4"},
	))
	if w.Code != http.StatusCreated {
		e.t.Fatalf("request devis: %d %s", w.Code, w.Body.String())
	}
	d := decode(e.t, w)["devis"].(map[string]interface{})
	return d["id"].(string)
}

func TestRequestDevisNotifiesAdmins(t *testing.T) {
	env := newTestEnv(t)
	id := env.requestDevis()

	w := env.do(http.MethodGet, "/api/users/devis/"+id, env.clientTok)
	if w.Code != http.StatusOK {
		t.Fatalf("get devis: %d %s", w.Code, w.Body.String())
	}
	d := decode(t, w)["devis"].(map[string]interface{})
	if d["statut"] != string(models.StatutEnAttente) {
		t.Fatalf("expected en_attente, got %v", d["statut"])
	}
	files := d["fichiers"].([]interface{})
	if len(files) != 1 || !strings.HasPrefix(files[0].(string), "http://api.test/uploads/devis/") {
		t.Fatalf("unexpected attachments %v", files)
	}

	env.deliver()
	w = env.do(http.MethodGet, "/api/notifications/unread-count", env.adminTok)
	if count := decode(t, w)["count"]; count != float64(1) {
		t.Fatalf("admin should have one notification, got %v", count)
	}
}

func TestRequestDevisRejectsBadUpload(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/users/demande-devis/"+env.forwarder.ID.Hex(), env.clientTok, multipartBody(
		map[string]string{"typeService": "maritime", "description": "Conteneur"},
		map[string]string{"script.exe": "MZ"},
	))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
	}
	if out := decode(t, w); out["success"] != false || out["message"] == "" {
		t.Fatalf("unexpected error body %v", out)
	}
}

func TestRequestDevisToPendingForwarder(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/users/demande-devis", env.clientTok, jsonBody(map[string]interface{}{
		"nomEntreprise": "New Fret", "typeService": "aerien", "description": "Colis",
	}))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unapproved forwarder, got %d %s", w.Code, w.Body.String())
	}
}

func TestClientCancelAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	id := env.requestDevis()

	if w := env.do(http.MethodGet, "/api/users/devis/"+id, env.otherTok); w.Code != http.StatusNotFound {
		t.Fatalf("foreign client must get 404, got %d", w.Code)
	}

	w := env.do(http.MethodPut, "/api/users/devis/"+id+"/cancel", env.clientTok)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	if statut := decode(t, w)["devis"].(map[string]interface{})["statut"]; statut != string(models.StatutAnnule) {
		t.Fatalf("expected annule, got %v", statut)
	}

	if w := env.do(http.MethodPut, "/api/users/devis/"+id+"/cancel", env.clientTok); w.Code != http.StatusBadRequest {
		t.Fatalf("second cancel must answer 400, got %d", w.Code)
	}
	update := jsonBody(map[string]interface{}{"description": "changement"})
	if w := env.do(http.MethodPut, "/api/users/devis/"+id, env.clientTok, update); w.Code != http.StatusBadRequest {
		t.Fatalf("update after cancel must answer 400, got %d", w.Code)
	}
	if w := env.do(http.MethodDelete, "/api/users/devis/"+id, env.clientTok); w.Code != http.StatusOK {
		t.Fatalf("delete is allowed whatever the status, got %d", w.Code)
	}
}

func TestForwarderResponse(t *testing.T) {
	env := newTestEnv(t)
	id := env.requestDevis()

	if w := env.do(http.MethodGet, "/api/translataires/devis", env.pendingTok); w.Code != http.StatusForbidden {
		t.Fatalf("unapproved forwarder must get 403, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/translataires/devis", env.clientTok); w.Code != http.StatusForbidden {
		t.Fatalf("clients must get 403, got %d", w.Code)
	}

	w := env.do(http.MethodGet, "/api/translataires/devis", env.forwarderTok)
	if w.Code != http.StatusOK || len(decode(t, w)["devis"].([]interface{})) != 1 {
		t.Fatalf("forwarder listing: %d %s", w.Code, w.Body.String())
	}

	bad := jsonBody(map[string]interface{}{"statut": "accepte", "reponse": "ok"})
	if w := env.do(http.MethodPut, "/api/translataires/devis/"+id, env.forwarderTok, bad); w.Code != http.StatusBadRequest {
		t.Fatalf("accept without amount must answer 400, got %d", w.Code)
	}

	good := jsonBody(map[string]interface{}{"statut": "accepte", "montant": 250000, "reponse": "Départ vendredi"})
	w = env.do(http.MethodPut, "/api/translataires/devis/"+id, env.forwarderTok, good)
	if w.Code != http.StatusOK {
		t.Fatalf("respond: %d %s", w.Code, w.Body.String())
	}

	env.deliver()
	w = env.do(http.MethodGet, "/api/notifications?unread=true", env.clientTok)
	if n := len(decode(t, w)["notifications"].([]interface{})); n != 1 {
		t.Fatalf("client should have one notification, got %d", n)
	}
}

func TestBlockedUserGetsForbidden(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/admin/users/"+env.client.ID.Hex()+"/block", env.adminTok)
	if w.Code != http.StatusOK || decode(t, w)["isBlocked"] != true {
		t.Fatalf("block: %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodGet, "/api/users/mes-devis", env.clientTok)
	if w.Code != http.StatusForbidden || decode(t, w)["message"] != "Compte bloqué" {
		t.Fatalf("expected 403 Compte bloqué, got %d %s", w.Code, w.Body.String())
	}
}

func TestBulkAndStatistics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/admin/translataires/bulk/archive", env.adminTok, jsonBody(map[string]interface{}{
		"ids": []string{env.forwarder.ID.Hex(), env.pending.ID.Hex()},
	}))
	if w.Code != http.StatusOK || decode(t, w)["count"] != float64(2) {
		t.Fatalf("bulk archive: %d %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPost, "/api/admin/users/bulk/explode", env.adminTok, jsonBody(map[string]interface{}{
		"ids": []string{env.client.ID.Hex()},
	}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown action must answer 400, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/api/admin/statistics", env.adminTok)
	if w.Code != http.StatusOK {
		t.Fatalf("statistics: %d %s", w.Code, w.Body.String())
	}
	stats := decode(t, w)["statistics"].(map[string]interface{})
	if stats["users"] != float64(2) || stats["pendingTranslataires"] != float64(1) {
		t.Fatalf("unexpected statistics %v", stats)
	}

	if w := env.do(http.MethodGet, "/api/admin/statistics", env.clientTok); w.Code != http.StatusForbidden {
		t.Fatalf("clients must not read statistics, got %d", w.Code)
	}
}

func TestReviewsUpdateRating(t *testing.T) {
	env := newTestEnv(t)
	for _, tok := range []string{env.clientTok, env.otherTok} {
		w := env.do(http.MethodPost, "/api/reviews", tok, jsonBody(map[string]interface{}{
			"translataireId": env.forwarder.ID.Hex(), "rating": 4, "comment": "Sérieux",
		}))
		if w.Code != http.StatusCreated {
			t.Fatalf("create review: %d %s", w.Code, w.Body.String())
		}
	}
	w := env.do(http.MethodPost, "/api/reviews", env.clientTok, jsonBody(map[string]interface{}{
		"translataireId": env.forwarder.ID.Hex(), "rating": 5,
	}))
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate review must answer 409, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/api/translataires/"+env.forwarder.ID.Hex(), "")
	if w.Code != http.StatusOK {
		t.Fatalf("public profile: %d %s", w.Code, w.Body.String())
	}
	profile := decode(t, w)["translataire"].(map[string]interface{})
	if profile["avgRating"] != float64(4) || profile["ratingsCount"] != float64(2) {
		t.Fatalf("unexpected rating %v/%v", profile["avgRating"], profile["ratingsCount"])
	}

	if w := env.do(http.MethodGet, "/api/translataires/"+env.pending.ID.Hex(), ""); w.Code != http.StatusNotFound {
		t.Fatalf("pending forwarder must be hidden, got %d", w.Code)
	}
	w = env.do(http.MethodGet, "/api/reviews/translataire/"+env.forwarder.ID.Hex(), "")
	if decode(t, w)["count"] != float64(2) {
		t.Fatalf("expected two public reviews, got %s", w.Body.String())
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(http.MethodGet, "/api/auth/me", env.clientTok); w.Code != http.StatusOK {
		t.Fatalf("me: %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/auth/logout", env.clientTok); w.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", w.Code, w.Body.String())
	}
	if w := env.do(http.MethodGet, "/api/auth/me", env.clientTok); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token must answer 401, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/auth/me", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must answer 401, got %d", w.Code)
	}
}

func TestRegistrationValidation(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/auth/register/translataire", "", jsonBody(map[string]interface{}{
		"email": "pas-un-email", "password": "123",
	}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if details, ok := decode(t, w)["details"].([]interface{}); !ok || len(details) < 3 {
		t.Fatalf("expected per-field details, got %s", w.Body.String())
	}
}

func TestNoRouteAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/nope", "")
	if w.Code != http.StatusNotFound || decode(t, w)["success"] != false {
		t.Fatalf("unexpected 404 body %d %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("metrics endpoint: %d", w.Code)
	}
	w = env.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || decode(t, w)["status"] != "ok" {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
}

// streamRecorder adds CloseNotify, which gin's Stream requires.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestNotificationStream(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/notifications/stream?token="+env.clientTok, nil).WithContext(ctx)
	w := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		env.router.ServeHTTP(w, req)
		close(done)
	}()

	room := models.Room(models.AccountUser, env.client.ID)
	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers(room) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.hub.Publish(models.Notification{
		RecipientID:   env.client.ID,
		RecipientType: models.AccountUser,
		Title:         "Devis accepté",
	})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not stop after cancellation")
	}

	out := w.Body.String()
	if !strings.Contains(out, "event:"+notify.EventNew) || !strings.Contains(out, "Devis accepté") {
		t.Fatalf("missing notification event in %q", out)
	}
}

func TestQueryTokenOnlyOnStream(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/notifications?token="+env.clientTok, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("query token on list: expected 401, got %d", w.Code)
	}
	w = env.do(http.MethodGet, "/api/users/mes-devis?token="+env.clientTok, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("query token on mes-devis: expected 401, got %d", w.Code)
	}
}

func TestUploadsDoNotListDirectories(t *testing.T) {
	env := newTestEnv(t)

	dir := filepath.Join(env.files.Root, "devis")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	name := "65f0aaaaaaaaaaaaaaaaaaaa.pdf"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("cotation"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, url := range []string{"/uploads/devis/", "/uploads/devis", "/uploads/"} {
		w := env.do(http.MethodGet, url, "")
		if strings.Contains(w.Body.String(), name) || strings.Contains(w.Body.String(), "devis/") {
			t.Fatalf("%s listed directory contents: %d %q", url, w.Code, w.Body.String())
		}
	}

	w := env.do(http.MethodGet, "/uploads/devis/"+name, "")
	if w.Code != http.StatusOK || w.Body.String() != "cotation" {
		t.Fatalf("stored file: %d %q", w.Code, w.Body.String())
	}
}
