package app

import (
	"fmt"
	"net/http"

	cfgpkg "github.com/limjaehoe/elincan/internal/config"
	"github.com/limjaehoe/elincan/internal/metrics"
	"github.com/limjaehoe/elincan/internal/usbcan"
	"github.com/prometheus/client_golang/prometheus"
)

// NewMetrics 初始化注册表与应用指标，并写入服务标识
// 指标关闭时返回的 handler 为 nil，HTTP 层据此不挂载 /metrics。
func NewMetrics(cfg *cfgpkg.Config) (*prometheus.Registry, *metrics.AppMetrics, http.Handler) {
	reg := metrics.NewRegistry()
	appm := metrics.NewAppMetrics(reg)
	appm.Info.WithLabelValues(cfg.App.Name, cfg.App.Env, cfg.USB.Driver, deviceLabel(cfg.USB)).Set(1)

	if !cfg.Metrics.Enable {
		return reg, appm, nil
	}
	return reg, appm, metrics.Handler(reg)
}

func deviceLabel(u cfgpkg.USBConfig) string {
	vid, pid := u.VendorID, u.ProductID
	if vid == 0 {
		vid = usbcan.VendorID
	}
	if pid == 0 {
		pid = usbcan.ProductID
	}
	return fmt.Sprintf("%04x:%04x", vid, pid)
}
