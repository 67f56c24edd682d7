package main

import (
	"database/sql"

	"calldesk-platform/internal/httpapi"
	"calldesk-platform/internal/rbac"
	"calldesk-platform/internal/webhook"
	"calldesk-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type registerDeps struct {
	db       *sql.DB
	api      httpapi.Handlers
	carrier  *webhook.Router
	verifier *webhook.SignatureVerifier
	authMW   gin.HandlerFunc
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps registerDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Carrier webhooks: public endpoints, authenticated by request signature.
	hooks := r.Group("/webhooks/carrier", deps.verifier.Middleware())
	{
		hooks.POST("/voice", deps.carrier.HandleVoice)
		hooks.POST("/status", deps.carrier.HandleCallStatus)
		hooks.POST("/sms", deps.carrier.HandleSMS)
		hooks.POST("/sms-status", deps.carrier.HandleSMSStatus)
	}

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", deps.api.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(deps.authMW)
	{
		// Any authenticated agent can work calls and conversations.
		agent := v1.Group("")
		agent.Use(rbac.RequireAnyRole(rbac.RoleSales, rbac.RoleManager, rbac.RoleAdmin))
		{
			agent.POST("/signaling/token", deps.api.SignalingToken)

			agent.POST("/calls", deps.api.StartCall)
			agent.GET("/leads/:lead_id/calls", deps.api.ListLeadCalls)

			agent.POST("/messages", deps.api.SendSMS)
			agent.GET("/leads/:lead_id/messages", deps.api.ListConversation)
			agent.GET("/leads/:lead_id/timeline", deps.api.LeadTimeline)
			agent.GET("/leads/:lead_id/calls/summary", deps.api.LeadCallsSummary)

			agent.GET("/alerts", deps.api.ListAlerts)
			agent.POST("/alerts/:alert_id/read", deps.api.MarkAlertRead)
		}

		// Assignment and dispatch notifications are manager actions.
		mgr := v1.Group("")
		mgr.Use(rbac.RequireAnyRole(rbac.RoleManager, rbac.RoleAdmin))
		{
			mgr.POST("/alerts/:alert_id/assign", deps.api.AssignAlert)

			mgr.POST("/notifications/appointment", deps.api.NotifyAppointment)
			mgr.POST("/notifications/vendor-dispatch", deps.api.NotifyVendorDispatch)
			mgr.POST("/notifications/:notification_id/resend", deps.api.ResendNotification)
			mgr.GET("/notifications/by-correlation/:correlation_id", deps.api.NotificationHistory)
		}
	}
}
