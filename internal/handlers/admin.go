package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"senfret/internal/middleware"
	"senfret/internal/models"
	"senfret/internal/moderation"
)

type bulkRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

type createAdminRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"nom"`
}

func accountFilter(c *gin.Context) (models.AccountFilter, error) {
	page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
	if err != nil {
		return models.AccountFilter{}, err
	}
	f := models.AccountFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Page:   page,
		Limit:  limit,
	}
	for key, dst := range map[string]**bool{
		"blocked":  &f.Blocked,
		"archived": &f.Archived,
		"approved": &f.Approved,
	} {
		if *dst, err = parseBoolQuery(c, key); err != nil {
			return models.AccountFilter{}, err
		}
	}
	return f, nil
}

func ListAccounts(svc *moderation.Service, t models.AccountType) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := "GET /api/admin/" + string(t) + "s"

		f, err := accountFilter(c)
		if err != nil {
			respondError(c, route, err)
			return
		}

		var (
			items interface{}
			total int64
		)
		if t == models.AccountTranslataire {
			var ts []models.Translataire
			ts, total, err = svc.ListTranslataires(c.Request.Context(), f)
			if ts == nil {
				ts = []models.Translataire{}
			}
			items = ts
		} else {
			var us []models.User
			us, total, err = svc.ListUsers(c.Request.Context(), f)
			if us == nil {
				us = []models.User{}
			}
			items = us
		}
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{
			string(t) + "s": items,
			"pagination":    pagination(f.Page, f.Limit, total),
		})
	}
}

func GetAccount(svc *moderation.Service, t models.AccountType) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := "GET /api/admin/" + string(t) + "s/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}

		var (
			account interface{}
			err     error
		)
		if t == models.AccountTranslataire {
			account, err = svc.GetTranslataire(c.Request.Context(), id)
		} else {
			account, err = svc.GetUser(c.Request.Context(), id)
		}
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{string(t): account})
	}
}

func ApproveAccount(svc *moderation.Service, t models.AccountType) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := "PUT /api/admin/" + string(t) + "s/:id/approve"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		if err := svc.Approve(c.Request.Context(), t, id); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Compte approuvé avec succès"})
	}
}

func ToggleBlockAccount(svc *moderation.Service, t models.AccountType) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := "PUT /api/admin/" + string(t) + "s/:id/block"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		blocked, err := svc.ToggleBlock(c.Request.Context(), t, id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		message := "Compte débloqué avec succès"
		if blocked {
			message = "Compte bloqué avec succès"
		}
		respondOK(c, http.StatusOK, gin.H{"message": message, "isBlocked": blocked})
	}
}

func DeleteAccount(svc *moderation.Service, t models.AccountType) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := "DELETE /api/admin/" + string(t) + "s/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), t, id); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Compte supprimé avec succès"})
	}
}

func BulkAccounts(svc *moderation.Service, t models.AccountType) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := "POST /api/admin/" + string(t) + "s/bulk/:action"

		var req bulkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		ids, err := moderation.ParseIDs(req.IDs)
		if err != nil {
			respondError(c, route, err)
			return
		}
		n, err := svc.Bulk(c.Request.Context(), t, c.Param("action"), ids)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Action effectuée", "count": n})
	}
}

func ListAdmins(svc *moderation.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/admins"

		admins, err := svc.ListAdmins(c.Request.Context())
		if err != nil {
			respondError(c, route, err)
			return
		}
		if admins == nil {
			admins = []models.Admin{}
		}
		respondOK(c, http.StatusOK, gin.H{"admins": admins})
	}
}

func CreateAdmin(svc *moderation.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/admin/admins"

		var req createAdminRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		admin, err := svc.CreateAdmin(c.Request.Context(), req.Email, req.Password, req.Name)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusCreated, gin.H{"message": "Administrateur créé avec succès", "admin": admin})
	}
}

func DeleteAdmin(svc *moderation.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/admin/admins/:id"

		id, ok := parseObjectID(c, route, "id")
		if !ok {
			return
		}
		if err := svc.DeleteAdmin(c.Request.Context(), middleware.PrincipalFrom(c).ID(), id); err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"message": "Administrateur supprimé avec succès"})
	}
}

func Statistics(svc *moderation.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/admin/statistics"

		stats, err := svc.Statistics(c.Request.Context())
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondOK(c, http.StatusOK, gin.H{"statistics": stats})
	}
}
