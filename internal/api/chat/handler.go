package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/punchagency/ycc-assist/internal/api/middleware"
	"github.com/punchagency/ycc-assist/internal/domain"
	"github.com/punchagency/ycc-assist/internal/service"
)

// Handler handles chat API requests
type Handler struct {
	orchestrator *service.Orchestrator
}

// NewHandler creates a new chat handler
func NewHandler(orchestrator *service.Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Chat)
	r.POST("/stream", h.ChatStream)
}

// Chat handles a non-streaming chat turn
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.orchestrator.Chat(c.Request.Context(), middleware.Caller(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message required"})
		case errors.Is(err, domain.ErrModelUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "chat service unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChatStream handles a streaming chat turn over SSE.
// Wire format: one "data:" line per chunk: {"content","sessionId"} for
// tokens, {"done":true,"sessionId"} as the terminal sentinel and
// {"error"} on failure.
func (h *Handler) ChatStream(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, _, err := h.orchestrator.ChatStream(c.Request.Context(), middleware.Caller(c), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-stream
		if !ok {
			return false
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		return true
	})
}
