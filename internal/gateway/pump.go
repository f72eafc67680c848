// Package gateway 将帧总线上的结果路由到PM过滤器、分发器与事件出口
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/limjaehoe/elincan/internal/dispatch"
	"github.com/limjaehoe/elincan/internal/metrics"
	"github.com/limjaehoe/elincan/internal/pmfilter"
	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/limjaehoe/elincan/internal/pubsub"
	"github.com/limjaehoe/elincan/internal/thirdparty"
	"github.com/limjaehoe/elincan/internal/usbcan"
	"go.uber.org/zap"
)

// eventBuffer 事件出口队列长度，满时丢弃
const eventBuffer = 256

// EventSink 事件出口（thirdparty.Fanout）
type EventSink interface {
	Publish(ctx context.Context, ev *thirdparty.Event) error
}

// StateSource 连接状态来源（usbcan.Bridge）
type StateSource interface {
	OnStateChange(fn func(usbcan.StateChange))
}

// Pump 帧处理泵
// 帧按到达顺序在单个协程中处理；事件经独立队列异步投递，出口变慢不阻塞帧处理。
type Pump struct {
	resolver *dispatch.Resolver
	disp     *dispatch.Dispatcher
	filter   *pmfilter.Filter
	sink     EventSink
	appm     *metrics.AppMetrics
	log      *zap.Logger

	events chan *thirdparty.Event

	mu     sync.RWMutex
	latest *canusb.Frame
	last   time.Time
}

// NewPump 创建处理泵并挂接分发器回调；sink 与 appm 可为 nil
func NewPump(
	resolver *dispatch.Resolver,
	disp *dispatch.Dispatcher,
	filter *pmfilter.Filter,
	sink EventSink,
	appm *metrics.AppMetrics,
	log *zap.Logger,
) *Pump {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pump{
		resolver: resolver,
		disp:     disp,
		filter:   filter,
		sink:     sink,
		appm:     appm,
		log:      log,
		events:   make(chan *thirdparty.Event, eventBuffer),
	}

	keyEvent := func(source string) dispatch.Hook {
		return func(pk dispatch.Packet) {
			p.emit(thirdparty.EventKeyPressed, pk.Device, map[string]any{
				"source": source,
				"cmd":    pk.Cmd.String(),
				"data":   canusb.HexString(pk.Payload),
			})
		}
	}
	disp.OnKey(keyEvent("device"))
	disp.OnRemoteControlKey(keyEvent("remote_control"))
	disp.OnFootSwitchKey(keyEvent("foot_switch"))
	disp.OnCollimator(func(pk dispatch.Packet) {
		p.emit(thirdparty.EventCollimatorData, pk.Device, map[string]any{
			"data": canusb.HexString(pk.Payload),
		})
	})
	return p
}

// Attach 订阅连接状态变化
func (p *Pump) Attach(src StateSource) {
	src.OnStateChange(func(sc usbcan.StateChange) {
		if p.appm != nil {
			p.appm.USBState.Set(float64(sc.State))
			p.appm.USBGeneration.Set(float64(sc.Generation))
		}
		p.emit(thirdparty.EventConnectionChanged, canusb.DeviceUnknown, map[string]any{
			"state":      sc.State.String(),
			"generation": sc.Generation,
		})
	})
}

// Run 消费帧订阅与PM变化，直到 ctx 结束或帧订阅关闭
func (p *Pump) Run(ctx context.Context, frames *pubsub.Subscription[usbcan.FrameResult]) error {
	changes, err := p.filter.Changes().Subscribe("pump", pubsub.DefaultBuffer)
	if err != nil {
		return err
	}
	defer func() { _ = p.filter.Changes().Unsubscribe("pump") }()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.deliver(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	pmC := changes.C()
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-frames.C():
			if !ok {
				p.log.Info("frame subscription closed")
				return nil
			}
			p.Handle(res)
		case ch, ok := <-pmC:
			if !ok {
				pmC = nil
				continue
			}
			p.onChange(ch)
		}
	}
}

// Handle 处理一条帧结果
func (p *Pump) Handle(res usbcan.FrameResult) {
	if res.Status == usbcan.StatusLoading {
		return
	}
	if !res.OK() {
		p.log.Warn("frame decode failed", zap.Error(res.Err))
		p.emit(thirdparty.EventFrameDecodeError, canusb.DeviceUnknown, map[string]any{
			"error": res.Err.Error(),
		})
		return
	}
	f := res.Value
	if f == nil {
		return
	}

	p.mu.Lock()
	p.latest = f
	p.last = time.Now()
	p.mu.Unlock()

	dev := p.resolver.Resolve(f.ID)
	cmd := f.Command()
	if cmd.IsPM() {
		if _, err := p.filter.Process(dev, f.Payload(), cmd); err != nil {
			p.log.Debug("pm sample rejected",
				zap.Stringer("device", dev),
				zap.String("frame", f.String()),
				zap.Error(err))
		}
		return
	}

	if err := p.disp.Dispatch(dev, cmd, f.Payload()); err != nil {
		p.log.Warn("frame dispatch failed", zap.String("frame", f.String()), zap.Error(err))
	}
	p.emit(thirdparty.EventFrameReceived, dev, map[string]any{
		"id":   f.ID,
		"cmd":  int(f.Cmd),
		"dlc":  int(f.DLC),
		"data": canusb.HexString(f.Payload()),
	})
}

func (p *Pump) onChange(ch pmfilter.ChangeResult) {
	if !ch.Changed {
		return
	}
	if p.appm != nil {
		p.appm.PMChangesTotal.WithLabelValues(ch.Device.String()).Inc()
	}
	p.emit(thirdparty.EventPMChanged, ch.Device, map[string]any{
		"axis":      ch.Axis,
		"value":     ch.Value,
		"unit_type": ch.UnitType,
	})
}

// Latest 最近一条成功解码的帧及其时间
func (p *Pump) Latest() (*canusb.Frame, time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return nil, time.Time{}, false
	}
	f := *p.latest
	return &f, p.last, true
}

func (p *Pump) emit(t thirdparty.EventType, dev canusb.DeviceType, data map[string]any) {
	if p.sink == nil {
		return
	}
	name := ""
	if dev != canusb.DeviceUnknown {
		name = dev.String()
	}
	select {
	case p.events <- thirdparty.NewEvent(t, name, data):
	default:
		p.log.Warn("event queue full, dropped", zap.String("event_type", string(t)))
	}
}

func (p *Pump) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			// 出口自行记录失败
			_ = p.sink.Publish(ctx, ev)
		}
	}
}
