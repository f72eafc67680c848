package thirdparty

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher 事件写入定长列表并在频道上广播
type RedisPublisher struct {
	redis   redis.Cmdable
	list    string
	channel string
	max     int64
	logger  *zap.Logger
}

// NewRedisPublisher list 为空时不入列表；channel 为空时不广播；max<=0 不裁剪
func NewRedisPublisher(client redis.Cmdable, list, channel string, max int64, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{redis: client, list: list, channel: channel, max: max, logger: logger}
}

func (p *RedisPublisher) Name() string { return "redis" }

// Publish RPUSH + LTRIM + PUBLISH 在同一事务中执行
func (p *RedisPublisher) Publish(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.redis.TxPipeline()
	if p.list != "" {
		pipe.RPush(ctx, p.list, data)
		if p.max > 0 {
			pipe.LTrim(ctx, p.list, -p.max, -1)
		}
	}
	if p.channel != "" {
		pipe.Publish(ctx, p.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}
	return nil
}

// Close 客户端由调用方管理
func (p *RedisPublisher) Close() error { return nil }
