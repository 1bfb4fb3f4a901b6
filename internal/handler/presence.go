package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liveboard/api/internal/live"
	"github.com/liveboard/api/internal/middleware"
	"github.com/liveboard/api/internal/store"
)

type PresenceHandler struct {
	presence *store.PresenceStore
	hub      *live.Hub
}

func NewPresenceHandler(presence *store.PresenceStore, hub *live.Hub) *PresenceHandler {
	return &PresenceHandler{presence: presence, hub: hub}
}

type HeartbeatRequest struct {
	Name string `json:"name" binding:"required"`
	Role string `json:"role" binding:"required"`
}

func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	sessionID := c.Param("id")

	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and role are required"})
		return
	}
	if !validRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be teacher or student"})
		return
	}

	if err := h.presence.Heartbeat(sessionID, req.Name, req.Role); err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordHeartbeat()
	h.hub.Invalidate(live.TopicPresence(sessionID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *PresenceHandler) List(c *gin.Context) {
	participants, err := h.presence.List(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (h *PresenceHandler) MarkOffline(c *gin.Context) {
	participantID := c.Param("id")

	sessionID, err := h.presence.MarkOffline(participantID)
	if err != nil {
		respondError(c, err)
		return
	}

	if sessionID != "" {
		h.hub.Invalidate(live.TopicPresence(sessionID))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
