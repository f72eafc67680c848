package health

import (
	"context"
	"sync/atomic"
	"time"
)

// Readiness 启动完成且聚合检查非不健康时就绪
type Readiness struct {
	started atomic.Bool
	agg     *Aggregator
	timeout time.Duration
}

func NewReadiness(agg *Aggregator) *Readiness {
	return &Readiness{agg: agg, timeout: 2 * time.Second}
}

// MarkStarted 启动流程结束后调用
func (r *Readiness) MarkStarted() { r.started.Store(true) }

// Ready 供 /readyz 使用
func (r *Readiness) Ready() bool {
	if !r.started.Load() {
		return false
	}
	if r.agg == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.agg.Ready(ctx)
}
