package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isyourdayok/backend/utils"
)

// CapabilityChecker decides whether a wallet holds a capability.
type CapabilityChecker interface {
	Can(ctx context.Context, address, capability string) (bool, error)
}

// RequireCapability must run after AuthRequired.
func RequireCapability(checker CapabilityChecker, capability string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		address := ctx.GetString(ContextAddressKey)
		if address == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
			ctx.Abort()
			return
		}
		ok, err := checker.Can(ctx.Request.Context(), address, capability)
		if err != nil {
			utils.L().Sugar().Errorf("capability check %s for %s: %v", capability, address, err)
			utils.Error(ctx, http.StatusInternalServerError, 50000, "internal error")
			ctx.Abort()
			return
		}
		if !ok {
			utils.Error(ctx, http.StatusForbidden, 40301, "missing capability "+capability)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
