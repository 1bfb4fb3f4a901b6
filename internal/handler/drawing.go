package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liveboard/api/internal/live"
	"github.com/liveboard/api/internal/middleware"
	"github.com/liveboard/api/internal/model"
	"github.com/liveboard/api/internal/store"
)

type DrawingHandler struct {
	strokes *store.StrokeStore
	hub     *live.Hub
}

func NewDrawingHandler(strokes *store.StrokeStore, hub *live.Hub) *DrawingHandler {
	return &DrawingHandler{strokes: strokes, hub: hub}
}

type AppendStrokeRequest struct {
	Stroke         model.StrokePayload `json:"stroke" binding:"required"`
	AuthorRole     string              `json:"authorRole" binding:"required"`
	AuthorName     string              `json:"authorName" binding:"required"`
	IdempotencyKey string              `json:"idempotencyKey"`
}

type AuthorRequest struct {
	AuthorRole string `json:"authorRole" binding:"required"`
	AuthorName string `json:"authorName" binding:"required"`
}

func (h *DrawingHandler) Append(c *gin.Context) {
	sessionID := c.Param("id")

	var req AppendStrokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stroke, authorRole and authorName are required"})
		return
	}
	if !validRole(req.AuthorRole) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorRole must be teacher or student"})
		return
	}
	if req.Stroke.Tool != model.ToolPen && req.Stroke.Tool != model.ToolEraser {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stroke tool must be pen or eraser"})
		return
	}
	if len(req.Stroke.Points) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stroke needs at least 2 points"})
		return
	}

	result, err := h.strokes.Append(sessionID, req.AuthorRole, req.AuthorName, req.Stroke, req.IdempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordStrokeAppend(req.AuthorRole, result.Duplicate)
	if !result.Duplicate {
		h.hub.Invalidate(live.TopicStrokes(sessionID))
	}
	c.JSON(http.StatusCreated, result)
}

func (h *DrawingHandler) List(c *gin.Context) {
	strokes, err := h.strokes.List(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"strokes": strokes})
}

func (h *DrawingHandler) Undo(c *gin.Context) {
	h.toggle(c, h.strokes.Undo)
}

func (h *DrawingHandler) Redo(c *gin.Context) {
	h.toggle(c, h.strokes.Redo)
}

func (h *DrawingHandler) toggle(c *gin.Context, op func(sessionID, role, name string) error) {
	sessionID := c.Param("id")

	var req AuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorRole and authorName are required"})
		return
	}
	if !validRole(req.AuthorRole) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorRole must be teacher or student"})
		return
	}

	if err := op(sessionID, req.AuthorRole, req.AuthorName); err != nil {
		respondError(c, err)
		return
	}

	h.hub.Invalidate(live.TopicStrokes(sessionID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *DrawingHandler) Clear(c *gin.Context) {
	sessionID := c.Param("id")

	var req AuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorRole and authorName are required"})
		return
	}
	if !validRole(req.AuthorRole) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorRole must be teacher or student"})
		return
	}

	scope, err := h.strokes.Clear(sessionID, req.AuthorRole, req.AuthorName)
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.Invalidate(live.TopicStrokes(sessionID))
	c.JSON(http.StatusOK, gin.H{"success": true, "scope": scope})
}
