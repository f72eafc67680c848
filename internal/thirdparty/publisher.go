// Package thirdparty 将设备事件投递到外部系统（Redis、MQTT）
package thirdparty

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Publisher 事件出口
type Publisher interface {
	Name() string
	Publish(ctx context.Context, ev *Event) error
	Close() error
}

// Fanout 顺序投递到所有出口，单个出口失败不影响其他出口
// 每个出口带熔断器，连续失败后在冷却期内直接跳过，避免逐条等待超时。
type Fanout struct {
	sinks    []Publisher
	breakers []*Breaker
	logger   *zap.Logger

	// OnResult 每个出口每次投递后调用（指标）
	OnResult func(sink string, err error)
}

// NewFanout 创建扇出投递器
func NewFanout(logger *zap.Logger, sinks ...Publisher) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{sinks: sinks, logger: logger}
	for range sinks {
		f.breakers = append(f.breakers, NewBreaker(0, 0))
	}
	return f
}

// BreakerStates 各出口熔断状态
func (f *Fanout) BreakerStates() map[string]BreakerState {
	out := make(map[string]BreakerState, len(f.sinks))
	for i, s := range f.sinks {
		out[s.Name()] = f.breakers[i].State()
	}
	return out
}

// Sinks 已配置的出口数量
func (f *Fanout) Sinks() int { return len(f.sinks) }

// Publish 返回所有失败出口的合并错误
func (f *Fanout) Publish(ctx context.Context, ev *Event) error {
	var errs []error
	for i, s := range f.sinks {
		br := f.breakers[i]
		if !br.Allow() {
			if f.OnResult != nil {
				f.OnResult(s.Name(), ErrCircuitOpen)
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), ErrCircuitOpen))
			continue
		}
		err := s.Publish(ctx, ev)
		br.Record(err)
		if f.OnResult != nil {
			f.OnResult(s.Name(), err)
		}
		if err != nil {
			f.logger.Warn("event publish failed",
				zap.String("sink", s.Name()),
				zap.String("event_id", ev.EventID),
				zap.String("event_type", string(ev.EventType)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		f.logger.Debug("event published",
			zap.String("sink", s.Name()),
			zap.String("event_id", ev.EventID),
			zap.String("event_type", string(ev.EventType)))
	}
	return errors.Join(errs...)
}

// Close 关闭所有出口
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
