package health

import (
	"context"
	"time"

	"github.com/limjaehoe/elincan/internal/usbcan"
)

// USBStatus 转换器连接状态来源（由 usbcan.Bridge 实现）
type USBStatus interface {
	State() usbcan.ConnState
	Generation() uint64
	Receiving() bool
}

// USBChecker CAN-USB 转换器健康检查器
type USBChecker struct {
	bridge USBStatus
}

// NewUSBChecker 创建 USB 健康检查器
func NewUSBChecker(bridge USBStatus) *USBChecker {
	return &USBChecker{bridge: bridge}
}

func (c *USBChecker) Name() string {
	return "usb"
}

// Check 已连接且接收循环运行为健康；等待授权或未接收为降级；断开为不健康
func (c *USBChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	state := c.bridge.State()
	receiving := c.bridge.Receiving()

	status := StatusHealthy
	message := "ok"
	switch {
	case state == usbcan.StateDisconnected:
		status, message = StatusUnhealthy, "converter disconnected"
	case state == usbcan.StatePermissionPending:
		status, message = StatusDegraded, "waiting for usb permission"
	case !receiving:
		status, message = StatusDegraded, "receive loop stopped"
	}

	return newResult(status, message, map[string]interface{}{
		"state":      state.String(),
		"generation": c.bridge.Generation(),
		"receiving":  receiving,
	}, start)
}
