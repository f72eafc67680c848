package app

import (
	cfgpkg "github.com/limjaehoe/elincan/internal/config"
	"github.com/limjaehoe/elincan/internal/health"
	redisstorage "github.com/limjaehoe/elincan/internal/storage/redis"
	"go.uber.org/zap"
)

// NewRedisClient 创建事件出口的Redis客户端；未启用时返回 nil
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.EventClient, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewEventClient(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis event client initialized",
		zap.String("addr", cfg.Addr),
		zap.String("list", client.EventList()),
		zap.String("channel", client.EventChannel()),
		zap.Int64("max_events", client.MaxEvents()),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// AddRedisChecker 添加Redis检查器到聚合器
func AddRedisChecker(aggregator *health.Aggregator, redisClient *redisstorage.EventClient) {
	if redisClient != nil {
		aggregator.AddChecker(health.NewRedisChecker(redisClient))
	}
}
