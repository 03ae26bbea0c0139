package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/apperr"
	"senfret/internal/devis"
	"senfret/internal/middleware"
	"senfret/internal/models"
	"senfret/internal/uploads"
)

func devisFilter(c *gin.Context) (models.DevisFilter, error) {
	page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
	if err != nil {
		return models.DevisFilter{}, err
	}
	f := models.DevisFilter{Page: page, Limit: limit}
	if raw := strings.TrimSpace(c.Query("statut")); raw != "" {
		f.Statut = models.Statut(raw)
		if !f.Statut.Valid() {
			return models.DevisFilter{}, apperr.Invalid("Statut invalide")
		}
	}
	for key, dst := range map[string]**primitive.ObjectID{
		"client":       &f.ClientID,
		"translataire": &f.TranslataireID,
	} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return models.DevisFilter{}, apperr.Invalid("Paramètre " + key + " invalide")
		}
		*dst = &id
	}
	return f, nil
}

func respondDevisList(c *gin.Context, items []models.Devis, total int64, f models.DevisFilter) {
	if items == nil {
		items = []models.Devis{}
	}
	respondOK(c, http.StatusOK, gin.H{
		"devis":      items,
		"pagination": pagination(f.Page, f.Limit, total),
	})
}

/* =========================
   CLIENT
========================= */

// RequestDevis creates a quote. The forwarder comes from the :id path
// parameter or, on the bare route, from the translataire/nomEntreprise field.
func RequestDevis(svc *devis.Service, files *uploads.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/users/demande-devis"

		form, err := readForm(c)
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		in, err := requestInput(form, c.Param("id"))
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		in.Files, err = form.saveFiles(files, attachmentsDir)
		if err != nil {
			respondFormError(c, route, err)
			return
		}

		d, err := svc.Request(c.Request.Context(), middleware.PrincipalFrom(c).User, in)
		if err != nil {
			files.DeleteAll(in.Files)
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, gin.H{"message": "Demande de devis envoyée avec succès", "devis": d})
	}
}

func ListClientDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/users/mes-devis"

		f, err := devisFilter(c)
		if err != nil {
			respondError(c, route, err)
			return
		}
		items, total, err := svc.ListForClient(c.Request.Context(), middleware.PrincipalFrom(c).ID(), f)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondDevisList(c, items, total, f)
	}
}

func GetClientDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/users/devis/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		d, err := svc.GetForClient(c.Request.Context(), middleware.PrincipalFrom(c).ID(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"devis": d})
	}
}

func UpdateClientDevis(svc *devis.Service, files *uploads.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/users/devis/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		form, err := readForm(c)
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		in, err := updateInput(form)
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		in.Files, err = form.saveFiles(files, attachmentsDir)
		if err != nil {
			respondFormError(c, route, err)
			return
		}

		d, err := svc.Update(c.Request.Context(), middleware.PrincipalFrom(c).ID(), id, in)
		if err != nil {
			files.DeleteAll(in.Files)
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Devis mis à jour avec succès", "devis": d})
	}
}

func CancelClientDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/users/devis/:id/cancel"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		d, err := svc.Cancel(c.Request.Context(), middleware.PrincipalFrom(c).ID(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Devis annulé avec succès", "devis": d})
	}
}

func DeleteClientDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/users/devis/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), middleware.PrincipalFrom(c).ID(), id); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Devis supprimé avec succès"})
	}
}

/* =========================
   TRANSLATAIRE
========================= */

func ListTranslataireDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/translataires/devis"

		f, err := devisFilter(c)
		if err != nil {
			respondError(c, route, err)
			return
		}
		items, total, err := svc.ListForTranslataire(c.Request.Context(), middleware.PrincipalFrom(c).ID(), f)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondDevisList(c, items, total, f)
	}
}

func GetTranslataireDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/translataires/devis/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		d, err := svc.GetForTranslataire(c.Request.Context(), middleware.PrincipalFrom(c).ID(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"devis": d})
	}
}

func RespondDevis(svc *devis.Service, files *uploads.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/translataires/devis/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		form, err := readForm(c)
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		if form.fileCount() > 1 {
			respondWithError(c, http.StatusBadRequest, route, "Un seul fichier est autorisé")
			return
		}
		in, err := responseInput(form)
		if err != nil {
			respondFormError(c, route, err)
			return
		}
		in.Files, err = form.saveFiles(files, attachmentsDir)
		if err != nil {
			respondFormError(c, route, err)
			return
		}

		d, err := svc.Respond(c.Request.Context(), middleware.PrincipalFrom(c).Translataire, id, in)
		if err != nil {
			files.DeleteAll(in.Files)
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Réponse envoyée avec succès", "devis": d})
	}
}

/* =========================
   ADMIN
========================= */

func AdminListDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/devis"

		f, err := devisFilter(c)
		if err != nil {
			respondError(c, route, err)
			return
		}
		items, total, err := svc.List(c.Request.Context(), f)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondDevisList(c, items, total, f)
	}
}

func AdminGetDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/devis/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		d, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"devis": d})
	}
}

func AdminArchiveDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/admin/devis/:id/archive"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		d, err := svc.Archive(c.Request.Context(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Devis archivé", "devis": d})
	}
}

func AdminDeleteDevis(svc *devis.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/devis/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		if err := svc.AdminDelete(c.Request.Context(), id); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Devis supprimé avec succès"})
	}
}
