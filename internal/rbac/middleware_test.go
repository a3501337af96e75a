package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lgtm-migrator/dtel/internal/auth"

	"github.com/gin-gonic/gin"
)

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", RoleAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireAnyRole(RoleSupport), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAnyRole_HiddenRoleDeniedUnlessAllowed(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", RoleAutomation)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireAnyRole(RoleSupport), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 403 {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireAnyRole_RoleRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", "")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireAnyRole(RoleSupport), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
