package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liveboard/api/internal/live"
	"github.com/liveboard/api/internal/store"
)

type SessionHandler struct {
	sessions *store.SessionStore
	hub      *live.Hub
}

func NewSessionHandler(sessions *store.SessionStore, hub *live.Hub) *SessionHandler {
	return &SessionHandler{sessions: sessions, hub: hub}
}

type CreateSessionRequest struct {
	TeacherName string `json:"teacherName" binding:"required"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "teacherName is required"})
		return
	}

	session, err := h.sessions.Create(req.TeacherName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"sessionId": session.ID, "code": session.Code})
}

func (h *SessionHandler) End(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.sessions.End(sessionID); err != nil {
		respondError(c, err)
		return
	}

	h.hub.Invalidate(live.TopicPresence(sessionID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *SessionHandler) LookupByCode(c *gin.Context) {
	session, err := h.sessions.LookupByCode(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}
