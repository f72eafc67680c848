package health

import (
	"context"
	"time"
)

// MQTTConn MQTT 客户端连接状态（paho mqtt.Client 满足该接口）
type MQTTConn interface {
	IsConnectionOpen() bool
}

// MQTTChecker MQTT 健康检查器；断线时 paho 自动重连，仅报告降级
type MQTTChecker struct {
	client MQTTConn
}

func NewMQTTChecker(client MQTTConn) *MQTTChecker {
	return &MQTTChecker{client: client}
}

func (c *MQTTChecker) Name() string {
	return "mqtt"
}

func (c *MQTTChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if !c.client.IsConnectionOpen() {
		return newResult(StatusDegraded, "broker connection down", nil, start)
	}
	return newResult(StatusHealthy, "ok", nil, start)
}
