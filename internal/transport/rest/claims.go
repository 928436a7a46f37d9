package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/application/submission"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/claim"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/internal/domain/connector"
	"github.com/Vladdy-1988/medlink-claims-hub-sub000/pkg/logger"
)

// ClaimHandler serves the submission endpoints.
type ClaimHandler struct {
	submissions *submission.Service
}

func NewClaimHandler(s *submission.Service) *ClaimHandler {
	return &ClaimHandler{submissions: s}
}

type submitRequest struct {
	Rail string `json:"rail"`
}

// Submit enqueues one claim for rail submission. Always asynchronous:
// the 202 acknowledges the job, not the outcome.
func (h *ClaimHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	job, created, err := h.submissions.Enqueue(c.Request.Context(), c.Param("id"), req.Rail, principalFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"queued":  true,
		"jobId":   job.ID,
		"created": created,
	})
}

// ConnectorStatus returns the claim's adjudication status and the most
// recent connector event.
func (h *ClaimHandler) ConnectorStatus(c *gin.Context) {
	view, err := h.submissions.Status(c.Request.Context(), c.Param("id"), principalFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// DryRun validates the claim against a rail and returns the payload the
// rail would receive, without submitting or enqueuing anything.
func (h *ClaimHandler) DryRun(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := h.submissions.DryRun(c.Request.Context(), c.Param("id"), req.Rail, principalFrom(c))
	if err != nil {
		var ve *connector.ValidationError
		var ce *connector.ConfigError
		if errors.As(err, &ve) || errors.As(err, &ce) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"valid": false, "error": err.Error()})
			return
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"rail":    res.Rail.String(),
		"payload": res.Payload,
	})
}

// abortWithError maps domain errors onto HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, connector.ErrUnknownRail), errors.Is(err, connector.ErrForeignExternalID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, claim.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, submission.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, claim.ErrDuplicateSubmission), errors.Is(err, claim.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error(c.Request.Context(), "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "internal server error",
			"requestId": GetRequestID(c),
		})
	}
}
