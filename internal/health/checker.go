package health

import (
	"context"
	"time"
)

// Status 组件状态
type Status string

const (
	StatusHealthy   Status = "healthy"   // 转换器在线并接收中，出口可用
	StatusDegraded  Status = "degraded"  // 仍可收发，部分出口或接收循环异常
	StatusUnhealthy Status = "unhealthy" // 转换器不可用
)

// severity 越大越严重
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worse 返回两者中更严重的状态
func Worse(a, b Status) Status {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// CheckResult 单个组件的检查结果
type CheckResult struct {
	Status  Status                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Latency time.Duration          `json:"latency"`
}

// Checker 组件检查器（usb / redis / mqtt）
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

func newResult(status Status, message string, details map[string]interface{}, start time.Time) CheckResult {
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
