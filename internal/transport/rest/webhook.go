package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/application/scheduler"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// WebhookHandler receives carrier status pushes.
type WebhookHandler struct {
	scheduler *scheduler.Scheduler
}

func NewWebhookHandler(s *scheduler.Scheduler) *WebhookHandler {
	return &WebhookHandler{scheduler: s}
}

// Receive authenticates and reconciles one pushed status report. The
// rail in the path must match the rail that issued the external id.
func (h *WebhookHandler) Receive(c *gin.Context) {
	rail, err := connector.ParseRail(c.Param("rail"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req scheduler.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cl, err := h.scheduler.HandleWebhook(c.Request.Context(), rail, req)
	if err != nil {
		if errors.Is(err, scheduler.ErrBadChecksum) {
			logger.Warn(c.Request.Context(), "webhook rejected",
				"rail", rail.String(), "externalId", req.ExternalID)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "checksum verification failed"})
			return
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"claimId": cl.ID,
		"status":  cl.Status,
	})
}
