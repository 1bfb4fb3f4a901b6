package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/liveboard/api/internal/live"
	"github.com/liveboard/api/internal/middleware"
	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/store"
)

type EventHandler struct {
	events *store.EventStore
	hub    *live.Hub
}

func NewEventHandler(events *store.EventStore, hub *live.Hub) *EventHandler {
	return &EventHandler{events: events, hub: hub}
}

type PublishEventRequest struct {
	Event   string          `json:"event" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

func (h *EventHandler) Publish(c *gin.Context) {
	channel := c.Param("channel")

	var req PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event is required"})
		return
	}

	result, err := h.events.Publish(channel, req.Event, req.Payload)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordEventPublished()
	h.hub.Invalidate(live.TopicEvents(channel))
	c.JSON(http.StatusCreated, result)
}

// Stream returns up to the retention-window of events for a channel,
// ascending by sequence. `after` lets polling subscribers skip
// sequences they already processed.
func (h *EventHandler) Stream(c *gin.Context) {
	channel := c.Param("channel")

	events, err := h.events.Stream(channel)
	if err != nil {
		respondError(c, err)
		return
	}

	if afterStr := c.Query("after"); afterStr != "" {
		after, err := strconv.ParseInt(afterStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after must be a sequence number"})
			return
		}
		filtered := make([]model.Event, 0, len(events))
		for _, event := range events {
			if event.Sequence > after {
				filtered = append(filtered, event)
			}
		}
		events = filtered
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
