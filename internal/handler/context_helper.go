package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/moodyoga/studio-api/internal/middleware"
	"github.com/moodyoga/studio-api/internal/models"
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

// actorFromContext converts stored claims into the actor the services expect.
// Returns nil for anonymous requests.
func actorFromContext(c *gin.Context) *models.CurrentUser {
	return claimsFromContext(c).Actor()
}
