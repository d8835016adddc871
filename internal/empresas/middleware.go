package empresas

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gbp-politico/backend/internal/middleware"
	"github.com/gbp-politico/backend/internal/models"
	"github.com/gbp-politico/backend/internal/realtime"
	"github.com/gbp-politico/backend/pkg/response"
)

// ErrInactive is returned for empresas that exist but are not active.
var ErrInactive = errors.New("empresa is not active")

// Lookup loads an empresa by id.
type Lookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Empresa, error)
}

// CheckActive returns nil only when the empresa exists and is active.
func CheckActive(ctx context.Context, lookup Lookup, id uuid.UUID) error {
	e, err := lookup.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !e.Active() {
		return ErrInactive
	}
	return nil
}

// ActiveSocket wraps a socket authenticator so only members of an active empresa can connect.
func ActiveSocket(lookup Lookup, next realtime.Authenticator) realtime.Authenticator {
	return func(ctx context.Context, token string) (realtime.Identity, error) {
		id, err := next(ctx, token)
		if err != nil {
			return realtime.Identity{}, err
		}
		err = CheckActive(ctx, lookup, id.EmpresaID)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInactive) {
			return realtime.Identity{}, fmt.Errorf("%w: %w", realtime.ErrDenied, err)
		}
		if err != nil {
			return realtime.Identity{}, err
		}
		return id, nil
	}
}

// RequireActiveEmpresa rejects callers whose token carries no empresa or whose empresa is not active.
// Call after JWT.
func RequireActiveEmpresa(lookup Lookup, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		empresaID, ok := middleware.EmpresaID(c)
		if !ok {
			response.Forbidden(c, "no active empresa")
			c.Abort()
			return
		}
		switch err := CheckActive(c.Request.Context(), lookup, empresaID); {
		case err == nil:
			c.Next()
		case errors.Is(err, ErrNotFound):
			response.Forbidden(c, "no active empresa")
			c.Abort()
		case errors.Is(err, ErrInactive):
			response.Forbidden(c, "empresa is suspended")
			c.Abort()
		default:
			logger.Error("empresa lookup failed", zap.String("empresa_id", empresaID.String()), zap.Error(err))
			response.Internal(c, "failed to load empresa")
			c.Abort()
		}
	}
}
