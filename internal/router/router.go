package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/castcount/internal/handler"
	"github.com/user/castcount/internal/middleware"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== 公开 API ====================
	api := r.Group("/api")
	{
		api.GET("/performers", h.Leaderboard)
		api.GET("/performers/:id", h.Performer)
	}

	// ==================== 管理接口 ====================
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdminToken(h.Config.AdminToken))
	{
		admin.POST("/performers/:id/refresh", h.RefreshPerformer)
	}
}
