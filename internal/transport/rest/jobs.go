package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/infrastructure/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// JobsHandler exposes queue introspection.
type JobsHandler struct {
	queue *queue.Runner
}

func NewJobsHandler(r *queue.Runner) *JobsHandler {
	return &JobsHandler{queue: r}
}

// Stats returns job counts per status.
func (h *JobsHandler) Stats(c *gin.Context) {
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "loading queue stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
