package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"senfret/internal/apperr"
	"senfret/internal/models"
	"senfret/internal/moderation"
)

var errPublicTranslataireNotFound = apperr.NotFound("Transitaire non trouvé")

// ListPublicTranslataires is the public directory: approved, active
// forwarders only.
func ListPublicTranslataires(svc *moderation.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/translataires"

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondError(c, route, err)
			return
		}
		yes, no := true, false
		f := models.AccountFilter{
			Search:   strings.TrimSpace(c.Query("search")),
			Approved: &yes,
			Blocked:  &no,
			Archived: &no,
			Page:     page,
			Limit:    limit,
		}

		items, total, err := svc.ListTranslataires(c.Request.Context(), f)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if items == nil {
			items = []models.Translataire{}
		}
		respondOK(c, http.StatusOK, gin.H{
			"translataires": items,
			"pagination":    pagination(page, limit, total),
		})
	}
}

func GetPublicTranslataire(svc *moderation.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/translataires/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		t, err := svc.GetTranslataire(c.Request.Context(), id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if !t.IsApproved || t.IsBlocked || t.IsArchived {
			respondError(c, route, errPublicTranslataireNotFound)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"translataire": t})
	}
}
