package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/pkg/response"
)

// ImportRoles may use the import screen; comum users may not.
var ImportRoles = []models.NivelAcesso{models.NivelAdmin, models.NivelGerente, models.NivelAtendente}

// RequireRole returns a middleware that allows only the given access levels.
func RequireRole(roles ...models.NivelAcesso) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[string(r)] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
