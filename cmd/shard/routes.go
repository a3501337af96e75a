package main

import (
	"database/sql"
	"time"

	"github.com/lgtm-migrator/dtel/internal/httpapi"
	"github.com/lgtm-migrator/dtel/internal/rbac"
	"github.com/lgtm-migrator/dtel/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Gateway events (public).
	// NOTE: These endpoints should be protected by gateway signature validation
	// in production; the gateway sits on the same private network here.
	events := r.Group("/events")
	{
		events.POST("/message", h.MessageCreate)
		events.POST("/message-update", h.MessageUpdate)
		events.POST("/message-delete", h.MessageDelete)
		events.POST("/typing", h.Typing)
		events.POST("/command", h.Command)
		events.POST("/interaction", h.Interaction)
	}

	// AUTH routes (token issuance).
	r.POST("/auth/login", h.Login)

	// protected ops API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		history := v1.Group("/calls")
		history.Use(rbac.RequireAnyRole(rbac.RoleSupport, rbac.RoleSupervisor, rbac.RoleAuditor))
		{
			history.GET("/summary", h.GetSummary)
			history.GET("/:call_id", h.GetCall)
			history.GET("/:call_id/history", h.GetTranscript)
		}

		// Force-end reaches into live state; auditors stay read-only.
		ops := v1.Group("/calls")
		ops.Use(rbac.RequireAnyRole(rbac.RoleSupport, rbac.RoleSupervisor))
		{
			ops.POST("/:call_id/end", h.EndCall)
		}
	}
}
