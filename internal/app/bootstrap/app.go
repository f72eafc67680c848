package bootstrap

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/limjaehoe/elincan/internal/api"
	"github.com/limjaehoe/elincan/internal/api/middleware"
	"github.com/limjaehoe/elincan/internal/app"
	cfgpkg "github.com/limjaehoe/elincan/internal/config"
	"github.com/limjaehoe/elincan/internal/dispatch"
	"github.com/limjaehoe/elincan/internal/gateway"
	"github.com/limjaehoe/elincan/internal/health"
	"github.com/limjaehoe/elincan/internal/pmfilter"
	"go.uber.org/zap"
)

// Run 统一启动流程，阻塞到收到退出信号
func Run(cfg *cfgpkg.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, cfg, log)
}

func run(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) error {
	log.Info("starting elincan", zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	// ========== 阶段1: 初始化基础组件 ==========
	_, appm, metricsHandler := app.NewMetrics(cfg)
	log.Info("basic components initialized", zap.Bool("metrics", metricsHandler != nil))

	// ========== 阶段2: USB 驱动与边界 ==========
	drv, err := app.NewUSBDriver(cfg.USB, log)
	if err != nil {
		log.Error("usb driver initialization failed", zap.Error(err))
		return err
	}
	bridge := app.NewBridge(drv, cfg.USB, appm, log)
	defer bridge.Cleanup()
	log.Info("usb bridge initialized",
		zap.String("driver", cfg.USB.Driver),
		zap.Uint16("vid", bridge.Options().VendorID),
		zap.Uint16("pid", bridge.Options().ProductID))

	// ========== 阶段3: 事件出口（Redis / MQTT）==========
	redisClient, err := app.NewRedisClient(cfg.Redis, log)
	if err != nil {
		log.Error("redis initialization failed", zap.Error(err))
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	events, mqttClient, err := app.NewEventFanout(cfg, redisClient, appm, log)
	if err != nil {
		log.Error("event sinks initialization failed", zap.Error(err))
		return err
	}
	defer events.Close()

	// ========== 阶段4: 分发器、PM过滤器与处理泵 ==========
	disp := dispatch.New(log.Named("dispatch"))
	app.WireDispatchMetrics(disp, appm)
	filter := pmfilter.New(disp, log.Named("pm"))
	defer filter.Close()
	resolver := app.NewResolver(cfg.Devices)
	pump := gateway.NewPump(resolver, disp, filter, events, appm, log.Named("pump"))
	pump.Attach(bridge)

	sub, err := bridge.Subscribe("pump", 0)
	if err != nil {
		return err
	}
	pumpCtx, cancelPump := context.WithCancel(context.Background())
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := pump.Run(pumpCtx, sub); err != nil {
			log.Error("pump stopped", zap.Error(err))
		}
	}()
	defer func() {
		cancelPump()
		<-pumpDone
	}()
	log.Info("frame pump started", zap.Int("device_ids", len(resolver.IDs())))

	// ========== 阶段5: 启动HTTP服务（非阻塞）==========
	healthAgg := app.NewHealthAggregator(bridge)
	app.AddRedisChecker(healthAgg, redisClient)
	if mqttClient != nil {
		app.AddMQTTChecker(healthAgg, mqttClient)
	}
	ready := health.NewReadiness(healthAgg)
	httpSrv := app.NewHTTPServer(cfg, metricsHandler, ready.Ready)

	handler := api.NewHandler(bridge, pump, filter, log.Named("api"))
	handler.OnGrant = drv.Grant
	authCfg := middleware.AuthConfig{APIKeys: cfg.API.APIKeys, Enabled: cfg.API.AuthEnabled}
	api.RegisterRoutes(httpSrv.Engine(), handler, authCfg, log)
	if cfg.HTTP.Swagger {
		api.RegisterSwagger(httpSrv.Engine())
	}
	app.RegisterHealthRoutes(httpSrv.Engine(), healthAgg)

	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// ========== 阶段6: 自动连接并启动接收 ==========
	if cfg.USB.AutoConnect {
		autoConnect(ctx, bridge, log)
	}
	ready.MarkStarted()
	log.Info("all services ready")

	// ========== 阶段7: 等待关闭信号 ==========
	<-ctx.Done()
	log.Info("received shutdown signal, gracefully shutting down...")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(sctx)
	log.Info("http server stopped")

	bridge.Cleanup()
	log.Info("usb bridge released")

	log.Info("shutdown complete")
	return nil
}

// autoConnect 连接失败只记录日志，可稍后通过接口重试
func autoConnect(ctx context.Context, bridge api.Bridge, log *zap.Logger) {
	res := bridge.Connect(ctx)
	switch {
	case res.Pending():
		log.Warn("usb auto-connect waiting for permission")
		return
	case !res.OK():
		log.Warn("usb auto-connect failed", zap.Error(res.Err))
		return
	}
	if res := bridge.StartReceiving(ctx); !res.OK() {
		log.Warn("usb receive loop start failed", zap.Error(res.Err))
		return
	}
	log.Info("usb connected, receiving", zap.Uint64("generation", bridge.Generation()))
}
