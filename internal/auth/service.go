// Package auth implements registration, login and request authentication
// for the three actor types.
package auth

import (
	"context"
	"errors"
	"fmt"
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

const resetTokenTTL = time.Hour

var loginOrder = []models.AccountType{models.AccountUser, models.AccountTranslataire, models.AccountAdmin}

type accountStore interface {
	store.AccountStore
	store.TokenStore
}

// Settings are the links embedded in account mails.
type Settings struct {
	PublicBaseURL string
	FrontendURL   string
}

type Service struct {
	store    accountStore
	tokens   *Tokens
	outbox   *notify.Outbox
	google   GoogleVerifier
	settings Settings
	now      func() time.Time
	log      zerolog.Logger
}

func NewService(s accountStore, tokens *Tokens, outbox *notify.Outbox, google GoogleVerifier, settings Settings) *Service {
	return &Service{
		store:    s,
		tokens:   tokens,
		outbox:   outbox,
		google:   google,
		settings: settings,
		now:      time.Now,
		log:      logging.New("auth"),
	}
}

type ClientRegistration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Company   string
	Address   string
}

type TranslataireRegistration struct {
	Email        string
	Password     string
	CompanyName  string
	NINEA        string
	Phone        string
	ServiceTypes []string
	Address      string
	Description  string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Principal *Principal
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) checkNewAccount(ctx context.Context, email, password string) error {
	if email == "" {
		return apperr.Invalid("Email requis")
	}
	if len(password) < minPasswordLength {
		return apperr.Invalid(fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères", minPasswordLength))
	}
	taken, err := s.store.EmailTaken(ctx, email)
	if err != nil {
		return apperr.Internal("Erreur lors de l'inscription", err)
	}
	if taken {
		return apperr.Conflict("Cet email est déjà utilisé")
	}
	return nil
}

func (s *Service) newAccount(email, password string) (models.Account, string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return models.Account{}, "", err
	}
	verifyToken, err := RandomToken()
	if err != nil {
		return models.Account{}, "", err
	}
	now := s.now()
	return models.Account{
		ID:                    primitive.NewObjectID(),
		Email:                 email,
		PasswordHash:          hash,
		VerificationTokenHash: HashToken(verifyToken),
		CreatedAt:             now,
		UpdatedAt:             now,
	}, verifyToken, nil
}

func (s *Service) RegisterClient(ctx context.Context, in ClientRegistration) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if err := s.checkNewAccount(ctx, email, in.Password); err != nil {
		return nil, err
	}
	account, verifyToken, err := s.newAccount(email, in.Password)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de l'inscription", err)
	}
	account.Phone = strings.TrimSpace(in.Phone)
	account.IsApproved = true

	user := &models.User{
		Account:   account,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Company:   strings.TrimSpace(in.Company),
		Address:   strings.TrimSpace(in.Address),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("Cet email est déjà utilisé")
		}
		return nil, apperr.Internal("Erreur lors de l'inscription", err)
	}

	s.log.Info().Str("id", user.ID.Hex()).Msg("client registered")
	s.sendVerification(ctx, user.Email, verifyToken)
	return user, nil
}

func (s *Service) RegisterTranslataire(ctx context.Context, in TranslataireRegistration) (*models.Translataire, error) {
	email := normalizeEmail(in.Email)
	ninea := strings.ToUpper(strings.TrimSpace(in.NINEA))
	if ninea == "" {
		return nil, apperr.Invalid("NINEA requis")
	}
	if strings.TrimSpace(in.CompanyName) == "" {
		return nil, apperr.Invalid("Nom de l'entreprise requis")
	}
	if err := s.checkNewAccount(ctx, email, in.Password); err != nil {
		return nil, err
	}
	taken, err := s.store.NineaTaken(ctx, ninea)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de l'inscription", err)
	}
	if taken {
		return nil, apperr.Conflict("Ce NINEA est déjà enregistré")
	}

	account, verifyToken, err := s.newAccount(email, in.Password)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de l'inscription", err)
	}
	account.Phone = strings.TrimSpace(in.Phone)

	t := &models.Translataire{
		Account:      account,
		CompanyName:  strings.TrimSpace(in.CompanyName),
		NINEA:        ninea,
		ServiceTypes: models.NewServiceTypeList(in.ServiceTypes),
		Address:      strings.TrimSpace(in.Address),
		Description:  strings.TrimSpace(in.Description),
	}
	if err := s.store.InsertTranslataire(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("Email ou NINEA déjà utilisé")
		}
		return nil, apperr.Internal("Erreur lors de l'inscription", err)
	}

	s.log.Info().Str("id", t.ID.Hex()).Str("ninea", t.NINEA).Msg("translataire registered, pending approval")
	s.sendVerification(ctx, t.Email, verifyToken)
	s.outbox.Notify(ctx, t.ID.Hex(), notify.ToAdmins(models.NotificationJob{
		Type:    models.NotifTranslataireRegistered,
		Title:   "Nouveau transitaire",
		Message: fmt.Sprintf("%s attend votre validation", t.CompanyName),
		Data:    map[string]string{"translataireId": t.ID.Hex()},
	}))
	return t, nil
}

func (s *Service) sendVerification(ctx context.Context, email, token string) {
	link := strings.TrimRight(s.settings.PublicBaseURL, "/") + "/api/auth/verify/" + token
	s.outbox.Email(ctx, email, models.EmailJob{
		To:      email,
		Subject: "Vérifiez votre adresse email",
		Body:    "Bienvenue ! Confirmez votre adresse email en ouvrant ce lien :\n" + link,
	})
}

func (s *Service) Verify(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return apperr.Invalid("Token de vérification invalide")
	}
	t, account, err := s.store.FindAccountByVerificationToken(ctx, HashToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Invalid("Token de vérification invalide ou expiré")
	}
	if err != nil {
		return apperr.Internal("Erreur lors de la vérification", err)
	}

	verified, empty := true, ""
	if err := s.store.UpdateAccount(ctx, t, account.ID, models.AccountUpdate{
		IsVerified:            &verified,
		VerificationTokenHash: &empty,
	}); err != nil {
		return apperr.Internal("Erreur lors de la vérification", err)
	}
	return nil
}

// Login checks credentials. userType is optional; without it the user,
// translataire and admin collections are searched in that order.
func (s *Service) Login(ctx context.Context, email, password string, userType models.AccountType) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Invalid("Email et mot de passe requis")
	}

	types := loginOrder
	if userType != "" {
		if !userType.Valid() {
			return nil, apperr.Invalid("Type d'utilisateur invalide")
		}
		types = []models.AccountType{userType}
	}

	for _, t := range types {
		account, err := s.store.FindAccountByEmail(ctx, t, email)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperr.Internal("Erreur lors de la connexion", err)
		}
		if !CheckPassword(account.PasswordHash, password) {
			break
		}
		return s.openSession(ctx, t, account.ID)
	}
	return nil, apperr.Unauthorized("Email ou mot de passe incorrect")
}

func (s *Service) openSession(ctx context.Context, t models.AccountType, id primitive.ObjectID) (*Session, error) {
	principal, err := s.loadPrincipal(ctx, t, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(principal.Account(), t)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la génération du token", err)
	}
	principal.Token = token
	s.log.Info().Str("id", id.Hex()).Str("userType", string(t)).Msg("login")
	return &Session{Token: token, ExpiresAt: expiresAt, Principal: principal}, nil
}

// GoogleLogin signs in a client with a Google ID token, creating a verified
// client account on first use.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (*Session, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, apperr.Invalid("Token Google requis")
	}
	profile, err := s.google.Verify(ctx, idToken)
	if err != nil {
		s.log.Warn().Err(err).Msg("google token rejected")
		return nil, apperr.Unauthorized("Token Google invalide")
	}
	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, apperr.Unauthorized("Token Google invalide")
	}

	account, err := s.store.FindAccountByEmail(ctx, models.AccountUser, email)
	switch {
	case err == nil:
		if account.GoogleID == "" {
			googleID := profile.Subject
			if err := s.store.UpdateAccount(ctx, models.AccountUser, account.ID, models.AccountUpdate{GoogleID: &googleID}); err != nil {
				return nil, apperr.Internal("Erreur lors de la connexion Google", err)
			}
		}
		return s.openSession(ctx, models.AccountUser, account.ID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Internal("Erreur lors de la connexion Google", err)
	}

	taken, err := s.store.EmailTaken(ctx, email)
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la connexion Google", err)
	}
	if taken {
		return nil, apperr.Conflict("Cet email est associé à un compte professionnel")
	}

	now := s.now()
	user := &models.User{
		Account: models.Account{
			ID:         primitive.NewObjectID(),
			Email:      email,
			GoogleID:   profile.Subject,
			IsVerified: true,
			IsApproved: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		FirstName:  profile.GivenName,
		LastName:   profile.FamilyName,
		AvatarPath: profile.Picture,
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		return nil, apperr.Internal("Erreur lors de la connexion Google", err)
	}
	s.log.Info().Str("id", user.ID.Hex()).Msg("client registered with google")
	return s.openSession(ctx, models.AccountUser, user.ID)
}

// ForgotPassword mails a reset link when the address is known. It reports
// success either way.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.Invalid("Email requis")
	}
	for _, t := range loginOrder {
		account, err := s.store.FindAccountByEmail(ctx, t, email)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return apperr.Internal("Erreur lors de la demande de réinitialisation", err)
		}

		token, err := RandomToken()
		if err != nil {
			return apperr.Internal("Erreur lors de la demande de réinitialisation", err)
		}
		hash := HashToken(token)
		expires := s.now().Add(resetTokenTTL)
		if err := s.store.UpdateAccount(ctx, t, account.ID, models.AccountUpdate{
			ResetTokenHash:      &hash,
			ResetTokenExpiresAt: &expires,
		}); err != nil {
			return apperr.Internal("Erreur lors de la demande de réinitialisation", err)
		}

		link := strings.TrimRight(s.settings.FrontendURL, "/") + "/reset-password/" + token
		s.outbox.Email(ctx, account.ID.Hex(), models.EmailJob{
			To:      account.Email,
			Subject: "Réinitialisation de votre mot de passe",
			Body:    "Ce lien est valable une heure :\n" + link,
		})
		return nil
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLength {
		return apperr.Invalid(fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères", minPasswordLength))
	}
	t, account, err := s.store.FindAccountByResetToken(ctx, HashToken(token), s.now())
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Invalid("Token invalide ou expiré")
	}
	if err != nil {
		return apperr.Internal("Erreur lors de la réinitialisation", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return apperr.Internal("Erreur lors de la réinitialisation", err)
	}
	if err := s.store.UpdateAccount(ctx, t, account.ID, models.AccountUpdate{
		PasswordHash:    &hash,
		ClearResetToken: true,
	}); err != nil {
		return apperr.Internal("Erreur lors de la réinitialisation", err)
	}
	return nil
}

// Logout revokes the bearer token until it would have expired.
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	expiresAt := s.now().Add(s.tokens.TTL)
	if p.Claims != nil && p.Claims.ExpiresAt != nil {
		expiresAt = p.Claims.ExpiresAt.Time
	}
	if err := s.store.BlacklistToken(ctx, HashToken(p.Token), expiresAt); err != nil {
		return apperr.Internal("Erreur lors de la déconnexion", err)
	}
	return nil
}

// Authenticate resolves a bearer token to its principal.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, apperr.Unauthorized("Token invalide")
	}
	revoked, err := s.store.IsTokenBlacklisted(ctx, HashToken(raw))
	if err != nil {
		return nil, apperr.Internal("Erreur d'authentification", err)
	}
	if revoked {
		return nil, apperr.Unauthorized("Token révoqué")
	}
	id, err := claims.AccountID()
	if err != nil {
		return nil, apperr.Unauthorized("Token invalide")
	}

	principal, err := s.loadPrincipal(ctx, claims.UserType, id)
	if err != nil {
		return nil, err
	}
	principal.Token = raw
	principal.Claims = claims
	return principal, nil
}

func (s *Service) loadPrincipal(ctx context.Context, t models.AccountType, id primitive.ObjectID) (*Principal, error) {
	p := &Principal{Type: t}
	var err error
	switch t {
	case models.AccountUser:
		p.User, err = s.store.GetUser(ctx, id)
	case models.AccountTranslataire:
		p.Translataire, err = s.store.GetTranslataire(ctx, id)
	case models.AccountAdmin:
		p.Admin, err = s.store.GetAdmin(ctx, id)
	default:
		return nil, apperr.Unauthorized("Type d'utilisateur invalide")
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Unauthorized("Utilisateur non trouvé")
	}
	if err != nil {
		return nil, apperr.Internal("Erreur d'authentification", err)
	}
	if p.Account().IsBlocked {
		return nil, apperr.Forbidden("Compte bloqué")
	}
	return p, nil
}
