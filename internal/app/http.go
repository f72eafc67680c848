package app

import (
	"net/http"

	cfgpkg "github.com/limjaehoe/elincan/internal/config"
	"github.com/limjaehoe/elincan/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器；metricsHandler 为 nil 时不挂载指标路由
func NewHTTPServer(cfg *cfgpkg.Config, metricsHandler http.Handler, readyFn func() bool) *httpserver.Server {
	return httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, readyFn)
}
