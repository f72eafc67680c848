package api

import (
	"github.com/gin-gonic/gin"
	"github.com/limjaehoe/elincan/internal/api/middleware"
	"go.uber.org/zap"
)

// RegisterRoutes 注册控制面路由
func RegisterRoutes(r gin.IRouter, h *Handler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := r.Group("/api/v1")
	api.Use(middleware.RequestTracing(), middleware.CORS(), middleware.APIKeyAuth(authCfg, logger))

	// 连接管理
	api.GET("/connection", h.GetConnection)
	api.POST("/connection", h.Connect)
	api.DELETE("/connection", h.Disconnect)
	api.POST("/connection/permission", h.Permission)

	// 接收循环
	api.POST("/receiver/start", h.StartReceiving)
	api.POST("/receiver/stop", h.StopReceiving)

	// 下行
	api.POST("/frames", h.SendFrame)
	api.POST("/axis-limits", h.SendAxisLimit)

	// 查询
	api.GET("/frames/latest", h.LatestFrame)
	api.GET("/pm", h.PMValues)

	logger.Info("api routes registered", zap.Int("endpoints", 10), zap.Bool("auth", authCfg.Enabled))
}
