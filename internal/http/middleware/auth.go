package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/livechat-backend/internal/platform/ctxutil"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/services"
)

const headerTenantID = "X-Tenant-Id"

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

// Identify attaches the caller identity. Anonymous visitors pass through with the
// tenant named by the request; a presented token must be valid.
func (am *AuthMiddleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantHint, ok := tenantFromRequest(c)
		if !ok {
			abort(c, http.StatusBadRequest, "invalid tenant id", "validation_failed")
			return
		}
		ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tenantHint, extractTokenFromAll(c))
		if err != nil {
			am.log.Debug("rejected token", "error", err)
			abort(c, http.StatusUnauthorized, err.Error(), "unauthorized")
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (am *AuthMiddleware) RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ctxutil.GetIdentity(c.Request.Context())
		if id == nil || id.TenantID <= 0 {
			abort(c, http.StatusBadRequest, "tenant is required", "validation_failed")
			return
		}
		c.Next()
	}
}

func (am *AuthMiddleware) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ctxutil.GetIdentity(c.Request.Context())
		if !id.IsOperator() {
			abort(c, http.StatusUnauthorized, "operator token required", "unauthorized")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"message": msg, "code": code},
	})
}

func tenantFromRequest(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.GetHeader(headerTenantID))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("tenant_id"))
	}
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func extractTokenFromAll(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
