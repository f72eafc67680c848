package usbcan

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// SendLimiter 下行帧节流（令牌桶），保证相邻帧之间的最小间隔
type SendLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration
	passed   atomic.Int64
	aborted  atomic.Int64
}

// NewSendLimiter interval<=0 时不限速
func NewSendLimiter(interval time.Duration) *SendLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &SendLimiter{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
	}
}

// Wait 阻塞到可以发送或 ctx 结束
func (l *SendLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		l.aborted.Add(1)
		return err
	}
	l.passed.Add(1)
	return nil
}

// SendLimiterStats 节流统计
type SendLimiterStats struct {
	Interval time.Duration `json:"interval"`
	Passed   int64         `json:"passed"`
	Aborted  int64         `json:"aborted"`
}

func (l *SendLimiter) Stats() SendLimiterStats {
	return SendLimiterStats{
		Interval: l.interval,
		Passed:   l.passed.Load(),
		Aborted:  l.aborted.Load(),
	}
}
