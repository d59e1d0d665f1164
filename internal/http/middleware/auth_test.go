package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/livechat-backend/internal/platform/ctxutil"
	"github.com/yungbote/livechat-backend/internal/platform/logger"
	"github.com/yungbote/livechat-backend/internal/services"
)

func authRouter(as services.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(logger.Nop(), as)
	r := gin.New()
	r.Use(am.Identify())
	r.GET("/visitor", am.RequireTenant(), func(c *gin.Context) {
		id := ctxutil.GetIdentity(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"tenant_id": id.TenantID, "operator": id.IsOperator()})
	})
	r.GET("/admin", am.RequireOperator(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	as := services.NewAuthService(logger.Nop(), "secret")
	tok, err := as.IssueOperatorToken(3, 9, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	r := authRouter(as)

	cases := []struct {
		name   string
		path   string
		header map[string]string
		want   int
	}{
		{"visitor with tenant header", "/visitor", map[string]string{"X-Tenant-Id": "3"}, http.StatusOK},
		{"visitor with tenant query", "/visitor?tenant_id=3", nil, http.StatusOK},
		{"visitor without tenant", "/visitor", nil, http.StatusBadRequest},
		{"malformed tenant", "/visitor", map[string]string{"X-Tenant-Id": "abc"}, http.StatusBadRequest},
		{"operator bearer", "/admin", map[string]string{"Authorization": "Bearer " + tok}, http.StatusNoContent},
		{"operator query token", "/admin?token=" + tok, nil, http.StatusNoContent},
		{"visitor on admin route", "/admin", map[string]string{"X-Tenant-Id": "3"}, http.StatusUnauthorized},
		{"bad token", "/visitor", map[string]string{"Authorization": "Bearer nope", "X-Tenant-Id": "3"}, http.StatusUnauthorized},
		{"token for other tenant", "/admin", map[string]string{"Authorization": "Bearer " + tok, "X-Tenant-Id": "4"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}
