package webhook

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"portal_analysis_backend/internal/analysis/transport"
	"portal_analysis_backend/platform/apperr"
	"portal_analysis_backend/platform/httpkit"
	"portal_analysis_backend/platform/logger"
)

const (
	headerSignature = "Signature"
	headerTimestamp = "Timestamp"
	headerTaskID    = "Task-Id"

	maxBodyBytes = 2 << 20
)

// Handler serves the engine callback endpoint.
type Handler struct {
	receiver *Receiver
}

func NewHandler(receiver *Receiver) *Handler {
	return &Handler{receiver: receiver}
}

// HandleAnalysisWebhook processes an engine callback.
// POST /api/v1/webhooks/analysis
// Authenticated by the Signature/Timestamp headers, no JWT.
func (h *Handler) HandleAnalysisWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("could not read body"))
		return
	}
	if len(body) > maxBodyBytes {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, "payload too large", nil)
		return
	}

	taskID := c.GetHeader(headerTaskID)
	ctx := c.Request.Context()
	if taskID != "" {
		ctx = context.WithValue(ctx, logger.DeliveryIDKey, taskID)
	}

	out, err := h.receiver.Receive(ctx, Delivery{
		Signature: c.GetHeader(headerSignature),
		Timestamp: c.GetHeader(headerTimestamp),
		TaskID:    taskID,
		Body:      body,
		ClientIP:  c.ClientIP(),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.WebhookResponse{
		Status:           string(out.Status),
		AlreadyProcessed: out.AlreadyProcessed,
		JobID:            out.ExternalJobID,
	})
}
