package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/formhub/formhub-api/internal/authz"
	"github.com/formhub/formhub-api/internal/middleware"
	"github.com/formhub/formhub-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext maps the authenticated claims, if any, to an authz
// actor. Nil means anonymous.
func actorFromContext(c *gin.Context) *authz.Actor {
	return authz.FromClaims(claimsFromContext(c))
}
