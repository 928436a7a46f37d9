// Package rest exposes the hub over HTTP: claim submission and status,
// the carrier status webhook, and queue introspection. The surface is
// thin; every decision lives in the application layer. There is no auth
// layer here: the principal comes from the X-Org-ID and X-Caller-Role
// headers set by the trusted upstream gateway.
package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/application/scheduler"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/application/submission"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/queue"
)

// Services carries the application pieces the routes need.
type Services struct {
	Submissions *submission.Service
	Scheduler   *scheduler.Scheduler
	Queue       *queue.Runner
}

// NewRouter assembles the gin engine with middleware and all routes.
func NewRouter(svc Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(RequestID())
	router.Use(Recovery())
	router.Use(RequestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	claims := NewClaimHandler(svc.Submissions)
	webhooks := NewWebhookHandler(svc.Scheduler)
	jobs := NewJobsHandler(svc.Queue)

	api := router.Group("/api")
	{
		api.POST("/claims/:id/submit", claims.Submit)
		api.GET("/claims/:id/connector-status", claims.ConnectorStatus)
		api.POST("/claims/:id/dry-run", claims.DryRun)
		api.POST("/webhooks/connector/:rail", webhooks.Receive)
		api.GET("/jobs/stats", jobs.Stats)
	}

	return router
}

// principalFrom reads the caller identity the upstream gateway injected.
func principalFrom(c *gin.Context) submission.Principal {
	return submission.Principal{
		OrgID: c.GetHeader("X-Org-ID"),
		Role:  c.GetHeader("X-Caller-Role"),
	}
}
