package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"senfret/internal/apperr"
	"senfret/internal/auth"
	"senfret/internal/logging"
	"senfret/internal/models"
)

const principalKey = "principal"

var logger = logging.New("middleware")

type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Principal, error)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message, "error": message})
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(strings.TrimSpace(c.GetHeader("Authorization")), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func streamToken(c *gin.Context) string {
	if c.GetHeader("Authorization") != "" {
		return bearerToken(c)
	}
	// EventSource cannot set headers
	return strings.TrimSpace(c.Query("token"))
}

// Protect authenticates the bearer token and stores the principal in the
// context.
func Protect(authn Authenticator) gin.HandlerFunc {
	return protect(authn, bearerToken)
}

// ProtectStream is Protect for event streams: the token may also be passed
// as the token query parameter.
func ProtectStream(authn Authenticator) gin.HandlerFunc {
	return protect(authn, streamToken)
}

func protect(authn Authenticator, extract func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extract(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "Non autorisé, token manquant")
			return
		}

		principal, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			status := apperr.Status(err)
			if status == http.StatusInternalServerError {
				logger.Error().Err(err).Str(logging.ROUTE, c.FullPath()).Msg("authentication failed")
			}
			abort(c, status, apperr.Message(err))
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Protect.
func PrincipalFrom(c *gin.Context) *auth.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*auth.Principal); ok {
			return p
		}
	}
	return nil
}

// Authorize restricts a route to the given actor types.
func Authorize(types ...models.AccountType) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			abort(c, http.StatusUnauthorized, "Non autorisé")
			return
		}
		for _, t := range types {
			if p.Type == t {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Accès refusé")
	}
}

// RequireApproved rejects forwarders whose account is not approved yet.
func RequireApproved() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			abort(c, http.StatusUnauthorized, "Non autorisé")
			return
		}
		if p.Type == models.AccountTranslataire && !p.Account().IsApproved {
			abort(c, http.StatusForbidden, "Compte en attente de validation")
			return
		}
		c.Next()
	}
}
