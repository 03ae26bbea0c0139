// Package devis implements the quote lifecycle: client requests, client
// update/cancel/delete, forwarder responses, admin archiving and expiry.
package devis

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
	"senfret/internal/metrics"
	"senfret/internal/models"
	"senfret/internal/notify"
	"senfret/internal/store"
)

const sweepBatch = 100

type devisStore interface {
	store.DevisStore
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetTranslataire(ctx context.Context, id primitive.ObjectID) (*models.Translataire, error)
	FindTranslataireByCompanyName(ctx context.Context, name string) (*models.Translataire, error)
}

// FileRemover deletes stored attachments.
type FileRemover interface {
	DeleteAll(urls []string)
}

type Service struct {
	store  devisStore
	outbox *notify.Outbox
	files  FileRemover
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(s devisStore, outbox *notify.Outbox, files FileRemover, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		store:  s,
		outbox: outbox,
		files:  files,
		ttl:    ttl,
		now:    time.Now,
		log:    logging.New("devis"),
	}
}

var (
	errDevisNotFound        = apperr.NotFound("Devis non trouvé")
	errTranslataireNotFound = apperr.NotFound("Transitaire non trouvé ou non approuvé")
	errNotPending           = apperr.Invalid("Ce devis n'est plus en attente")
	errConcurrentUpdate     = apperr.Conflict("Le devis a été modifié entre-temps, veuillez réessayer")
)

// RequestInput is a quote request from a client. Translataire is either the
// forwarder id or its exact company name.
type RequestInput struct {
	Translataire string
	TypeService  string
	Description  string
	Origin       string
	Destination  string
	ExpiresAt    *time.Time
	Shipment     *models.Shipment
	Files        []string
	DevisOrigin  string
}

// UpdateInput carries the fields a client may change while the quote is
// pending. Nil or blank values are ignored.
type UpdateInput struct {
	TypeService  *string
	Description  *string
	Origin       *string
	Destination  *string
	ExpiresAt    *time.Time
	Weight       *float64
	Length       *float64
	Width        *float64
	Height       *float64
	Fragile      *bool
	Dangerous    *bool
	Refrigerated *bool
	Files        []string
}

// ResponseInput is a forwarder's answer.
type ResponseInput struct {
	Statut  models.Statut
	Montant float64
	Reponse string
	Files   []string
}

func (s *Service) findForwarder(ctx context.Context, ref string) (*models.Translataire, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.Invalid("Transitaire requis")
	}

	var (
		t   *models.Translataire
		err = store.ErrNotFound
	)
	if id, hexErr := primitive.ObjectIDFromHex(ref); hexErr == nil {
		t, err = s.store.GetTranslataire(ctx, id)
	}
	if errors.Is(err, store.ErrNotFound) {
		t, err = s.store.FindTranslataireByCompanyName(ctx, ref)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, errTranslataireNotFound
	}
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la recherche du transitaire", err)
	}
	if !t.IsApproved || t.IsBlocked || t.IsArchived {
		return nil, errTranslataireNotFound
	}
	return t, nil
}

// Request creates a pending quote addressed to an approved forwarder.
func (s *Service) Request(ctx context.Context, client *models.User, in RequestInput) (*models.Devis, error) {
	if strings.TrimSpace(in.TypeService) == "" {
		return nil, apperr.Invalid("Le type de service est requis")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperr.Invalid("La description est requise")
	}
	t, err := s.findForwarder(ctx, in.Translataire)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return nil, apperr.Invalid("La date d'expiration doit être dans le futur")
		}
		expiresAt = *in.ExpiresAt
	}
	if in.Shipment != nil && in.Shipment.IsZero() {
		in.Shipment = nil
	}

	d := &models.Devis{
		ID:             primitive.NewObjectID(),
		TranslataireID: t.ID,
		ClientID:       client.ID,
		TypeService:    strings.TrimSpace(in.TypeService),
		Description:    strings.TrimSpace(in.Description),
		Origin:         strings.TrimSpace(in.Origin),
		Destination:    strings.TrimSpace(in.Destination),
		Shipment:       in.Shipment,
		ClientFiles:    append([]string{}, in.Files...),
		Statut:         models.StatutEnAttente,
		DevisOrigin:    strings.TrimSpace(in.DevisOrigin),
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      expiresAt,
		Version:        1,
	}
	if err := s.store.InsertDevis(ctx, d); err != nil {
		return nil, apperr.Internal("Erreur lors de la création du devis", err)
	}
	metrics.DevisTransitions.WithLabelValues("new", string(models.StatutEnAttente)).Inc()
	s.log.Info().Str("devis", d.ID.Hex()).Str("client", client.ID.Hex()).Str("translataire", t.ID.Hex()).Msg("devis requested")

	s.outbox.Notify(ctx, d.ID.Hex(), notify.ToAdmins(models.NotificationJob{
		Type:    models.NotifDevisCreated,
		Title:   "Nouvelle demande de devis",
		Message: fmt.Sprintf("%s a demandé un devis à %s", client.FullName(), t.CompanyName),
		Data:    devisData(d),
	}))
	if d.DevisOrigin != models.OriginNouveauDevis {
		s.outbox.Email(ctx, d.ID.Hex(), models.EmailJob{
			To:      t.Email,
			Subject: "Nouvelle demande de devis",
			Body: fmt.Sprintf("Bonjour %s,\n\nVous avez reçu une demande de devis (%s) : %s\n",
				t.CompanyName, d.TypeService, d.Description),
		})
	}
	return d, nil
}

func devisData(d *models.Devis) map[string]string {
	return map[string]string{
		"devisId":        d.ID.Hex(),
		"clientId":       d.ClientID.Hex(),
		"translataireId": d.TranslataireID.Hex(),
		"statut":         string(d.Statut),
	}
}

func (s *Service) save(ctx context.Context, d *models.Devis) error {
	d.UpdatedAt = s.now()
	err := s.store.UpdateDevis(ctx, d)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrVersionConflict):
		return errConcurrentUpdate
	case errors.Is(err, store.ErrNotFound):
		return errDevisNotFound
	}
	return apperr.Internal("Erreur lors de la mise à jour du devis", err)
}

func (s *Service) transition(ctx context.Context, d *models.Devis, next models.Statut) error {
	from := d.Statut
	if !from.CanTransition(next) {
		if from != models.StatutEnAttente {
			return errNotPending
		}
		return apperr.Invalid(fmt.Sprintf("Transition %s vers %s impossible", from, next))
	}
	d.Statut = next
	if err := s.save(ctx, d); err != nil {
		d.Statut = from
		return err
	}
	metrics.DevisTransitions.WithLabelValues(string(from), string(next)).Inc()
	s.log.Info().Str("devis", d.ID.Hex()).Str("from", string(from)).Str("to", string(next)).Msg("devis transition")
	return nil
}

func (s *Service) lookup(d *models.Devis, err error) (*models.Devis, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, errDevisNotFound
	}
	if err != nil {
		return nil, apperr.Internal("Erreur lors de la récupération du devis", err)
	}
	return d, nil
}

func (s *Service) list(ctx context.Context, f models.DevisFilter) ([]models.Devis, int64, error) {
	if f.Statut != "" && !f.Statut.Valid() {
		return nil, 0, apperr.Invalid("Statut invalide")
	}
	devis, total, err := s.store.ListDevis(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal("Erreur lors de la récupération des devis", err)
	}
	return devis, total, nil
}

func (s *Service) ListForClient(ctx context.Context, clientID primitive.ObjectID, f models.DevisFilter) ([]models.Devis, int64, error) {
	f.ClientID = &clientID
	f.TranslataireID = nil
	return s.list(ctx, f)
}

// GetForClient returns the quote only if clientID owns it.
func (s *Service) GetForClient(ctx context.Context, clientID, id primitive.ObjectID) (*models.Devis, error) {
	return s.lookup(s.store.FindDevisForClient(ctx, id, clientID))
}

// Update applies the allowed fields of in while the quote is pending. New
// files replace the stored ones.
func (s *Service) Update(ctx context.Context, clientID, id primitive.ObjectID, in UpdateInput) (*models.Devis, error) {
	d, err := s.GetForClient(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if d.Statut != models.StatutEnAttente {
		return nil, errNotPending
	}

	setString := func(dst *string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			*dst = strings.TrimSpace(*v)
		}
	}
	setString(&d.TypeService, in.TypeService)
	setString(&d.Description, in.Description)
	setString(&d.Origin, in.Origin)
	setString(&d.Destination, in.Destination)
	if in.ExpiresAt != nil && !in.ExpiresAt.IsZero() {
		if !in.ExpiresAt.After(s.now()) {
			return nil, apperr.Invalid("La date d'expiration doit être dans le futur")
		}
		d.ExpiresAt = *in.ExpiresAt
	}

	shipment := models.Shipment{}
	if d.Shipment != nil {
		shipment = *d.Shipment
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat(&shipment.Weight, in.Weight)
	setFloat(&shipment.Length, in.Length)
	setFloat(&shipment.Width, in.Width)
	setFloat(&shipment.Height, in.Height)
	setBool(&shipment.Fragile, in.Fragile)
	setBool(&shipment.Dangerous, in.Dangerous)
	setBool(&shipment.Refrigerated, in.Refrigerated)
	if shipment.IsZero() {
		d.Shipment = nil
	} else {
		d.Shipment = &shipment
	}

	var replaced []string
	if len(in.Files) > 0 {
		replaced = d.ClientFiles
		d.ClientFiles = append([]string{}, in.Files...)
	}

	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	s.removeFiles(replaced)

	s.outbox.Notify(ctx, d.ID.Hex(), notify.To(models.AccountTranslataire, d.TranslataireID, models.NotificationJob{
		Type:    models.NotifDevisUpdated,
		Title:   "Devis modifié",
		Message: fmt.Sprintf("Le client a modifié sa demande de devis (%s)", d.TypeService),
		Data:    devisData(d),
	}))
	return d, nil
}

// Cancel moves a pending quote to annule and informs the forwarder and the
// admins.
func (s *Service) Cancel(ctx context.Context, clientID, id primitive.ObjectID) (*models.Devis, error) {
	d, err := s.GetForClient(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if d.Statut != models.StatutEnAttente {
		return nil, errNotPending
	}
	if err := s.transition(ctx, d, models.StatutAnnule); err != nil {
		return nil, err
	}

	job := models.NotificationJob{
		Type:    models.NotifDevisCancelled,
		Title:   "Devis annulé",
		Message: fmt.Sprintf("La demande de devis (%s) a été annulée par le client", d.TypeService),
		Data:    devisData(d),
	}
	s.outbox.Notify(ctx, d.ID.Hex(), notify.To(models.AccountTranslataire, d.TranslataireID, job))
	s.outbox.Notify(ctx, d.ID.Hex(), notify.ToAdmins(job))
	return d, nil
}

// Delete removes the client's quote whatever its status.
func (s *Service) Delete(ctx context.Context, clientID, id primitive.ObjectID) error {
	d, err := s.GetForClient(ctx, clientID, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, d)
}

func (s *Service) remove(ctx context.Context, d *models.Devis) error {
	err := s.store.DeleteDevis(ctx, d.ID)
	if errors.Is(err, store.ErrNotFound) {
		return errDevisNotFound
	}
	if err != nil {
		return apperr.Internal("Erreur lors de la suppression du devis", err)
	}
	s.removeFiles(append(append([]string{}, d.ClientFiles...), d.TranslataireFiles...))
	s.log.Info().Str("devis", d.ID.Hex()).Str("statut", string(d.Statut)).Msg("devis deleted")
	return nil
}

func (s *Service) removeFiles(urls []string) {
	if s.files != nil && len(urls) > 0 {
		s.files.DeleteAll(urls)
	}
}

func (s *Service) ListForTranslataire(ctx context.Context, translataireID primitive.ObjectID, f models.DevisFilter) ([]models.Devis, int64, error) {
	f.TranslataireID = &translataireID
	f.ClientID = nil
	return s.list(ctx, f)
}

func (s *Service) GetForTranslataire(ctx context.Context, translataireID, id primitive.ObjectID) (*models.Devis, error) {
	return s.lookup(s.store.FindDevisForTranslataire(ctx, id, translataireID))
}

// Respond records the forwarder's acceptance (with an amount) or refusal.
func (s *Service) Respond(ctx context.Context, t *models.Translataire, id primitive.ObjectID, in ResponseInput) (*models.Devis, error) {
	if !t.IsApproved {
		return nil, apperr.Forbidden("Compte en attente de validation")
	}
	reponse := strings.TrimSpace(in.Reponse)
	switch in.Statut {
	case models.StatutAccepte:
		if in.Montant <= 0 {
			return nil, apperr.Invalid("Un montant positif est requis pour accepter le devis")
		}
		if reponse == "" {
			return nil, apperr.Invalid("Une réponse est requise")
		}
	case models.StatutRefuse:
		if reponse == "" {
			return nil, apperr.Invalid("Une réponse est requise")
		}
	default:
		return nil, apperr.Invalid("Statut invalide: accepte ou refuse attendu")
	}

	d, err := s.GetForTranslataire(ctx, t.ID, id)
	if err != nil {
		return nil, err
	}
	if d.Statut != models.StatutEnAttente {
		return nil, apperr.Invalid("Ce devis a déjà été traité")
	}

	now := s.now()
	d.Reponse = reponse
	d.RespondedAt = &now
	if in.Statut == models.StatutAccepte {
		d.Montant = in.Montant
	}
	var replaced []string
	if len(in.Files) > 0 {
		replaced = d.TranslataireFiles
		d.TranslataireFiles = append([]string{}, in.Files...)
	}
	if err := s.transition(ctx, d, in.Statut); err != nil {
		return nil, err
	}
	s.removeFiles(replaced)

	notifType, title, verb := models.NotifDevisAccepted, "Devis accepté", "accepté"
	if in.Statut == models.StatutRefuse {
		notifType, title, verb = models.NotifDevisRefused, "Devis refusé", "refusé"
	}
	message := fmt.Sprintf("%s a %s votre demande de devis (%s)", t.CompanyName, verb, d.TypeService)
	s.outbox.Notify(ctx, d.ID.Hex(), notify.To(models.AccountUser, d.ClientID, models.NotificationJob{
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    devisData(d),
	}))

	client, err := s.store.GetUser(ctx, d.ClientID)
	if err != nil {
		s.log.Warn().Err(err).Str("devis", d.ID.Hex()).Msg("client not found, response mail skipped")
		return d, nil
	}
	body := message + "\n\n" + d.Reponse + "\n"
	if in.Statut == models.StatutAccepte {
		body += fmt.Sprintf("\nMontant proposé : %.2f FCFA\n", d.Montant)
	}
	s.outbox.Email(ctx, d.ID.Hex(), models.EmailJob{To: client.Email, Subject: title, Body: body})
	return d, nil
}

// List is the admin listing across all clients and forwarders.
func (s *Service) List(ctx context.Context, f models.DevisFilter) ([]models.Devis, int64, error) {
	return s.list(ctx, f)
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.Devis, error) {
	return s.lookup(s.store.GetDevis(ctx, id))
}

// Archive is the admin transition to archive.
func (s *Service) Archive(ctx context.Context, id primitive.ObjectID) (*models.Devis, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Statut == models.StatutArchive {
		return nil, apperr.Invalid("Ce devis est déjà archivé")
	}
	if err := s.transition(ctx, d, models.StatutArchive); err != nil {
		return nil, err
	}
	return d, nil
}

// AdminDelete removes any quote.
func (s *Service) AdminDelete(ctx context.Context, id primitive.ObjectID) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, d)
}

// SweepExpired archives pending quotes past their expiration date and tells
// their clients. Quotes changed concurrently are left for the next sweep.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ListExpiredDevis(ctx, now, sweepBatch)
	if err != nil {
		return 0, err
	}
	archived := 0
	for i := range expired {
		d := &expired[i]
		if err := s.transition(ctx, d, models.StatutArchive); err != nil {
			if apperr.KindOf(err) == apperr.KindConflict {
				continue
			}
			return archived, err
		}
		archived++
		s.outbox.Notify(ctx, d.ID.Hex(), notify.To(models.AccountUser, d.ClientID, models.NotificationJob{
			Type:    models.NotifDevisExpired,
			Title:   "Devis expiré",
			Message: fmt.Sprintf("Votre demande de devis (%s) a expiré sans réponse", d.TypeService),
			Data:    devisData(d),
		}))
	}
	return archived, nil
}
