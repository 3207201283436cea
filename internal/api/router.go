package api

import (
	"github.com/gin-gonic/gin"

	"github.com/punchagency/ycc-assist/internal/api/admin"
	"github.com/punchagency/ycc-assist/internal/api/chat"
	"github.com/punchagency/ycc-assist/internal/api/middleware"
	"github.com/punchagency/ycc-assist/internal/service"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	APIKey       string
	JWTSecret    string
	AllowOrigins []string
}

// SetupRouter sets up the Gin router
func SetupRouter(
	orchestrator *service.Orchestrator,
	adminService *service.AdminService,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(middleware.CORS(cfg.AllowOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Chat API (public; Bearer token optional, resolves the caller)
	chatHandler := chat.NewHandler(orchestrator)
	chatGroup := r.Group("/api/chat")
	chatGroup.Use(middleware.CallerAuth(cfg.JWTSecret))
	chatHandler.RegisterRoutes(chatGroup)

	// Admin API (requires API key)
	adminHandler := admin.NewHandler(adminService)
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(middleware.APIKeyAuth(cfg.APIKey))
	adminHandler.RegisterRoutes(adminGroup)

	return r
}
