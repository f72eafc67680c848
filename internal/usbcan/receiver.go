package usbcan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/limjaehoe/elincan/internal/pubsub"
	"go.uber.org/zap"
)

// FrameResult 帧总线上的元素
type FrameResult = Result[*canusb.Frame]

// source 接收循环的数据源（由 Session 实现）
type source interface {
	Read(ctx context.Context, buf []byte) (int, error)
	Generation() uint64
}

// ReceiverCallbacks 指标回调
type ReceiverCallbacks struct {
	ChunkReceived func(n int)
	FrameDecoded  func(err error)
	ReadFailed    func(err error)
	Stopped       func(reason error)
}

// Receiver 后台接收循环
// 每次 Start 建立新的运行编号并记录会话代数，旧运行或旧会话的结果一律丢弃。
type Receiver struct {
	src      source
	bus      *pubsub.Bus[FrameResult]
	interval time.Duration
	debug    bool
	log      *zap.Logger
	cb       ReceiverCallbacks
	gone     func(gen uint64) // 设备丢失时由循环调用

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	run    atomic.Uint64 // 最新运行编号
	active atomic.Uint64 // 正在运行的编号，0 表示未运行
}

// NewReceiver 创建接收循环
func NewReceiver(src source, bus *pubsub.Bus[FrameResult], interval time.Duration, log *zap.Logger) *Receiver {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &Receiver{src: src, bus: bus, interval: interval, log: log}
}

// SetCallbacks 设置指标回调，需在 Start 前调用
func (r *Receiver) SetCallbacks(cb ReceiverCallbacks) { r.cb = cb }

// onDeviceGone 设置设备丢失回调（Bridge 用来回收会话）
func (r *Receiver) onDeviceGone(fn func(gen uint64)) { r.gone = fn }

// SetDebug 打印每个原始数据块
func (r *Receiver) SetDebug(v bool) { r.debug = v }

// Running 循环是否在运行
func (r *Receiver) Running() bool { return r.active.Load() != 0 }

// Start 取消旧循环后启动新循环；循环不随调用方 ctx 的取消而结束
func (r *Receiver) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()

	runID := r.run.Add(1)
	gen := r.src.Generation()
	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	r.active.Store(runID)

	go r.loop(lctx, runID, gen, done)
	r.log.Info("receive loop started", zap.Uint64("run", runID), zap.Uint64("generation", gen))
}

// Stop 取消循环并等待其退出；重复调用无副作用
func (r *Receiver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Receiver) stopLocked() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel, r.done = nil, nil
}

func (r *Receiver) loop(ctx context.Context, runID, gen uint64, done chan struct{}) {
	defer close(done)
	defer r.active.CompareAndSwap(runID, 0)

	buf := make([]byte, canusb.ReadBufSize)
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			r.exit(runID, gen, context.Canceled)
			return
		}

		n, err := r.src.Read(ctx, buf)
		switch {
		case err == nil:
			if n > 2 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				r.handleChunk(ctx, runID, gen, chunk)
			}
		case errors.Is(err, ErrNotConnected), errors.Is(err, ErrDeviceGone):
			r.log.Warn("receive loop lost device", zap.Uint64("run", runID), zap.Error(err))
			r.exit(runID, gen, err)
			return
		case ctx.Err() != nil:
			r.exit(runID, gen, context.Canceled)
			return
		default:
			r.log.Debug("usb read failed", zap.Error(err))
			if r.cb.ReadFailed != nil {
				r.cb.ReadFailed(err)
			}
		}

		timer.Reset(r.interval)
		select {
		case <-ctx.Done():
			r.exit(runID, gen, context.Canceled)
			return
		case <-timer.C:
		}
	}
}

func (r *Receiver) exit(runID, gen uint64, reason error) {
	r.log.Info("receive loop stopped", zap.Uint64("run", runID), zap.NamedError("reason", reason))
	if errors.Is(reason, ErrDeviceGone) && r.gone != nil {
		r.gone(gen)
	}
	if r.cb.Stopped != nil {
		r.cb.Stopped(reason)
	}
}

// handleChunk 解码并发布；短块静默丢弃
func (r *Receiver) handleChunk(ctx context.Context, runID, gen uint64, chunk []byte) {
	if r.cb.ChunkReceived != nil {
		r.cb.ChunkReceived(len(chunk))
	}
	if r.debug {
		r.log.Debug("usb chunk", zap.Int("len", len(chunk)), zap.String("hex", canusb.HexString(chunk)))
	}

	f, err := canusb.Decode(chunk)
	if f == nil && err == nil {
		return
	}
	if r.cb.FrameDecoded != nil {
		r.cb.FrameDecoded(err)
	}

	// 过期结果：循环已被取消/替换，或会话已重建
	if ctx.Err() != nil || r.run.Load() != runID || r.src.Generation() != gen {
		return
	}

	if err != nil {
		r.log.Warn("decode chunk failed", zap.Error(err), zap.String("hex", canusb.HexString(chunk)))
		r.bus.Publish(Failure[*canusb.Frame](err))
		return
	}
	if r.debug {
		r.log.Debug("frame received", zap.Stringer("frame", f))
	}
	r.bus.Publish(Success(f))
}
