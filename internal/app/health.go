package app

import (
	"github.com/gin-gonic/gin"
	"github.com/limjaehoe/elincan/internal/health"
)

// NewHealthAggregator 以 USB 检查器为基础创建聚合器
func NewHealthAggregator(usb health.USBStatus) *health.Aggregator {
	return health.NewAggregator(health.NewUSBChecker(usb))
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddMQTTChecker 添加MQTT检查器
func AddMQTTChecker(aggregator *health.Aggregator, conn health.MQTTConn) {
	if conn != nil {
		aggregator.AddChecker(health.NewMQTTChecker(conn))
	}
}
