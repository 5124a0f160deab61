package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ordinaut/ordinaut/internal/lifecycle"
	"github.com/ordinaut/ordinaut/internal/transport/http/middleware"
)

type EventHandler struct {
	svc    *lifecycle.Service
	logger *slog.Logger
}

func NewEventHandler(svc *lifecycle.Service, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger.With("component", "event_handler")}
}

type publishEventRequest struct {
	Topic   string      `json:"topic" binding:"required,max=256"`
	Payload interface{} `json:"payload"`
}

func (h *EventHandler) Publish(c *gin.Context) {
	var req publishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var payload []byte
	if req.Payload != nil {
		payload, _ = json.Marshal(req.Payload)
	}

	fired, err := h.svc.PublishEvent(c.Request.Context(), middleware.ActorFromContext(c), req.Topic, payload)
	if err != nil {
		writeTaskError(c, h.logger, "publish event", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"topic": req.Topic, "fired": fired})
}
