package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/limjaehoe/elincan/internal/app/bootstrap"
	cfgpkg "github.com/limjaehoe/elincan/internal/config"
	"github.com/limjaehoe/elincan/internal/logging"
	"go.uber.org/zap"
)

// @title elincan API
// @version 1.0
// @description CAN-USB 转换器本地控制面：连接管理、收发控制与状态查询
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	configPath := flag.String("config", "", "配置文件路径（默认读取 ELIN_CONFIG 或 configs/example.yaml）")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging, cfg.USB.DebugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动
	if err := bootstrap.Run(cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
