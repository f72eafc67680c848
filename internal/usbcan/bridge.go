package usbcan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/limjaehoe/elincan/internal/pubsub"
	"go.uber.org/zap"
)

// Unit 无返回值操作的占位
type Unit struct{}

// BridgeCallbacks 指标回调
type BridgeCallbacks struct {
	Receiver    ReceiverCallbacks
	FrameSent   func(err error)
	FrameDrop   func(subscriber string)
	StateChange func(StateChange)
}

// Bridge 对外边界：连接、断开、发送、收发循环与帧订阅
type Bridge struct {
	drv     Driver
	sess    *Session
	recv    *Receiver
	frames  *pubsub.Bus[FrameResult]
	limiter *SendLimiter
	opts    Options
	log     *zap.Logger
	cb      BridgeCallbacks

	lmu       sync.RWMutex
	listeners []func(StateChange)

	cleanOnce sync.Once
}

// NewBridge 组装会话、接收循环与帧总线
func NewBridge(drv Driver, perm PermissionRequester, opts Options, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()
	frames := pubsub.New[FrameResult]()
	sess := NewSession(drv, perm, opts, log.Named("session"))
	recv := NewReceiver(sess, frames, opts.PollInterval, log.Named("receiver"))
	recv.SetDebug(opts.DebugMode)

	b := &Bridge{
		drv:     drv,
		sess:    sess,
		recv:    recv,
		frames:  frames,
		limiter: NewSendLimiter(opts.SendInterval),
		opts:    opts,
		log:     log,
	}
	sess.notify = b.fireState
	recv.onDeviceGone(b.deviceGone)
	frames.OnDrop = func(name string) {
		if b.cb.FrameDrop != nil {
			b.cb.FrameDrop(name)
		}
	}
	return b
}

// SetCallbacks 设置指标回调，需在连接前调用
func (b *Bridge) SetCallbacks(cb BridgeCallbacks) {
	b.cb = cb
	b.recv.SetCallbacks(cb.Receiver)
}

// OnStateChange 注册状态监听
func (b *Bridge) OnStateChange(fn func(StateChange)) {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	b.listeners = append(b.listeners, fn)
}

func (b *Bridge) fireState(sc StateChange) {
	if b.cb.StateChange != nil {
		b.cb.StateChange(sc)
	}
	b.lmu.RLock()
	ls := append([]func(StateChange){}, b.listeners...)
	b.lmu.RUnlock()
	for _, fn := range ls {
		fn(sc)
	}
}

// deviceGone 设备拔出后回收会话；需重新 Connect 并 StartReceiving
func (b *Bridge) deviceGone(gen uint64) {
	if b.sess.markGone(gen) {
		b.log.Warn("usb device lost, reconnect required", zap.Uint64("generation", gen))
	}
}

func (b *Bridge) State() ConnState   { return b.sess.State() }
func (b *Bridge) Generation() uint64 { return b.sess.Generation() }
func (b *Bridge) Receiving() bool    { return b.recv.Running() }
func (b *Bridge) Options() Options   { return b.opts }

// Frames 帧总线（仅订阅）
func (b *Bridge) Frames() *pubsub.Bus[FrameResult] { return b.frames }

// Subscribe 订阅帧结果
func (b *Bridge) Subscribe(name string, buffer int) (*pubsub.Subscription[FrameResult], error) {
	if buffer <= 0 {
		buffer = b.opts.FrameBuffer
	}
	return b.frames.Subscribe(name, buffer)
}

// Connect 建立连接
func (b *Bridge) Connect(ctx context.Context) Result[ConnState] {
	return b.sess.Connect(ctx)
}

// PermissionGranted 宿主授权结果
func (b *Bridge) PermissionGranted(dev Device, granted bool) Result[ConnState] {
	return b.sess.PermissionGranted(dev, granted)
}

// Disconnect 先停止接收循环，再释放传输资源
func (b *Bridge) Disconnect() Result[ConnState] {
	b.recv.Stop()
	return b.sess.Disconnect()
}

// StartReceiving 启动（或重启）接收循环
func (b *Bridge) StartReceiving(ctx context.Context) Result[Unit] {
	if b.sess.State() != StateConnected {
		return Failure[Unit](ErrNotConnected)
	}
	b.recv.Start(ctx)
	return Success(Unit{})
}

// StopReceiving 停止接收循环
func (b *Bridge) StopReceiving() Result[Unit] {
	b.recv.Stop()
	return Success(Unit{})
}

// SendPacket 编码并发送一帧
func (b *Bridge) SendPacket(ctx context.Context, id [4]byte, cmd byte, data []byte) Result[Unit] {
	res := b.sendPacket(ctx, id, cmd, data)
	if b.cb.FrameSent != nil {
		b.cb.FrameSent(res.Err)
	}
	return res
}

func (b *Bridge) sendPacket(ctx context.Context, id [4]byte, cmd byte, data []byte) Result[Unit] {
	if b.sess.State() != StateConnected {
		return Failure[Unit](ErrNotConnected)
	}
	pkt, err := canusb.Encode(id, cmd, data)
	if err != nil {
		return Failure[Unit](err)
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return Failure[Unit](fmt.Errorf("send throttled: %w", err))
	}

	gen := b.sess.Generation()
	n, err := b.sess.Write(ctx, pkt[:])
	b.log.Debug("usb frame sent",
		zap.String("hex", canusb.HexString(pkt[:])),
		zap.Int("written", n),
		zap.Error(err))
	if err != nil {
		b.log.Warn("usb send failed", zap.Error(err))
		if errors.Is(err, ErrDeviceGone) {
			b.deviceGone(gen)
		}
		return Failure[Unit](err)
	}
	return Success(Unit{})
}

// SendFrame 以帧ID(大端4字节)、命令与完整的6字节 Data 发送，DLC 不参与
// 限束器帧的8字节负载放不进下行数据区，直接拒绝；需要变长负载时用 SendPacket。
func (b *Bridge) SendFrame(ctx context.Context, f *canusb.Frame) Result[Unit] {
	if f == nil {
		return Failure[Unit](fmt.Errorf("send frame: nil frame"))
	}
	if f.Collimator() {
		return Failure[Unit](fmt.Errorf("send frame id %d: %w", f.ID, canusb.ErrCollimatorFrame))
	}
	return b.SendPacket(ctx, canusb.IDBytes(f.ID), f.Cmd, f.Data[:])
}

// SendAxisLimit 发送轴限位设置
func (b *Bridge) SendAxisLimit(ctx context.Context, id int32, cmd byte, axis, axisMax, axisMin int) Result[Unit] {
	return b.SendPacket(ctx, canusb.IDBytes(id), cmd, canusb.AxisLimitBytes(axis, axisMax, axisMin))
}

// LimiterStats 下行节流统计
func (b *Bridge) LimiterStats() SendLimiterStats { return b.limiter.Stats() }

// Cleanup 停止循环、断开设备、关闭帧总线与驱动；仅执行一次
func (b *Bridge) Cleanup() {
	b.cleanOnce.Do(func() {
		b.recv.Stop()
		if res := b.sess.Disconnect(); !res.OK() {
			b.log.Warn("cleanup disconnect", zap.Error(res.Err))
		}
		b.frames.Close()
		if b.drv != nil {
			if err := b.drv.Close(); err != nil {
				b.log.Warn("close usb driver", zap.Error(err))
			}
		}
	})
}
