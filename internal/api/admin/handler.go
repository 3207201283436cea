package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/punchagency/ycc-assist/internal/service"
)

// Handler handles admin API requests
type Handler struct {
	adminService *service.AdminService
}

// NewHandler creates a new admin handler
func NewHandler(adminService *service.AdminService) *Handler {
	return &Handler{adminService: adminService}
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/context/reindex", h.ReindexContext)
	r.GET("/stats", h.GetStats)
}

type reindexRequest struct {
	Force bool `json:"force"`
}

// ReindexContext rebuilds the knowledge context corpus
func (h *Handler) ReindexContext(c *gin.Context) {
	var req reindexRequest
	// Body is optional; default is a non-forced build.
	_ = c.ShouldBindJSON(&req)

	if err := h.adminService.ReindexContext(c.Request.Context(), req.Force); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "forced": req.Force})
}

// GetStats returns service statistics
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
