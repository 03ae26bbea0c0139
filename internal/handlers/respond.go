package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"senfret/internal/apperr"
	"senfret/internal/logging"
	"senfret/internal/store"
)

var logger = logging.New("handlers")

func respondOK(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	logger.Debug().Str(logging.ROUTE, route).Int("status", status).Msg(message)
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message, "error": message})
}

// respondError renders a service error. Unexpected failures are logged with
// their cause and answered with a generic message.
func respondError(c *gin.Context, route string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		err = apperr.NotFound("Ressource non trouvée")
	}
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str(logging.ROUTE, route).Msg("request failed")
	}
	respondWithError(c, status, route, apperr.Message(err))
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s est requis", field))
			case "email":
				details = append(details, fmt.Sprintf("%s doit être un email valide", field))
			case "min":
				details = append(details, fmt.Sprintf("%s doit contenir au moins %s caractères", field, fieldError.Param()))
			default:
				details = append(details, fmt.Sprintf("%s est invalide", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Données invalides",
			"error":   "Données invalides",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Corps de requête invalide",
		"error":   "Corps de requête invalide",
		"details": err.Error(),
	})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func parseObjectID(c *gin.Context, route, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "Identifiant invalide")
		return primitive.NilObjectID, false
	}
	return id, true
}

// Recovery turns panics into the standard 500 body.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Interface("panic", recovered).
			Str(logging.ROUTE, c.FullPath()).
			Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Erreur serveur",
			"error":   "Erreur serveur",
		})
	})
}

func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		respondWithError(c, http.StatusNotFound, c.Request.URL.Path, "Route non trouvée")
	}
}
