// Package redis 事件出口使用的 Redis 连接
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	cfgpkg "github.com/limjaehoe/elincan/internal/config"
	"github.com/redis/go-redis/v9"
)

// ClientName 连接上报的客户端名（CLIENT LIST 可见）
const ClientName = "elincan-events"

var (
	ErrDisabled = errors.New("redis is not enabled")
	ErrNoTarget = errors.New("redis enabled without eventList or eventChannel")
)

// EventClient 事件投递用的连接池，附带事件列表与广播频道
type EventClient struct {
	*redis.Client
	list    string
	channel string
	max     int64
}

// NewEventClient 创建连接并 PING；列表与频道至少配置一个
func NewEventClient(cfg cfgpkg.RedisConfig) (*EventClient, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.EventList == "" && cfg.EventChannel == "" {
		return nil, ErrNoTarget
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   ClientName,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	return &EventClient{Client: rdb, list: cfg.EventList, channel: cfg.EventChannel, max: cfg.MaxEvents}, nil
}

func (c *EventClient) EventList() string    { return c.list }
func (c *EventClient) EventChannel() string { return c.channel }
func (c *EventClient) MaxEvents() int64     { return c.max }

// Backlog 事件列表当前长度；未配置列表时为 0
func (c *EventClient) Backlog(ctx context.Context) (int64, error) {
	if c.list == "" {
		return 0, nil
	}
	return c.LLen(ctx, c.list).Result()
}

// HealthCheck PING
func (c *EventClient) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Stats 连接池统计
func (c *EventClient) Stats() *redis.PoolStats {
	return c.PoolStats()
}

func (c *EventClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
