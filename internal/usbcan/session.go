package usbcan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// link 已就绪的句柄与端点，仅在连接/断开时整体替换
type link struct {
	h   Handle
	in  EndpointDesc
	out EndpointDesc
}

// Session 持有设备句柄、已声明接口与IN/OUT端点
// 连接/断开在 mu 下串行；读写只读取 link 快照，不加锁。
type Session struct {
	mu   sync.Mutex
	drv  Driver
	perm PermissionRequester
	opts Options
	log  *zap.Logger

	dev   Device // 等待授权或已连接的设备
	link  atomic.Pointer[link]
	state atomic.Int32
	gen   atomic.Uint64

	notify func(StateChange)
}

// NewSession 创建会话
func NewSession(drv Driver, perm PermissionRequester, opts Options, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		drv:  drv,
		perm: perm,
		opts: opts.withDefaults(),
		log:  log,
	}
}

// State 当前状态
func (s *Session) State() ConnState { return ConnState(s.state.Load()) }

// Generation 会话代数，每次成功建立连接加一
func (s *Session) Generation() uint64 { return s.gen.Load() }

// Options 生效参数
func (s *Session) Options() Options { return s.opts }

func (s *Session) setState(st ConnState) {
	if ConnState(s.state.Swap(int32(st))) == st {
		return
	}
	s.log.Info("usb state changed", zap.Stringer("state", st), zap.Uint64("generation", s.gen.Load()))
	if s.notify != nil {
		s.notify(StateChange{State: st, Generation: s.gen.Load(), At: time.Now()})
	}
}

// Connect 查找设备并建立连接；已连接时直接成功
func (s *Session) Connect(ctx context.Context) Result[ConnState] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateConnected {
		return Success(StateConnected)
	}
	if err := ctx.Err(); err != nil {
		return Failure[ConnState](err)
	}

	dev, err := s.find()
	if err != nil {
		s.log.Warn("usb device lookup failed", zap.Error(err))
		return Failure[ConnState](err)
	}

	if !dev.Authorized() {
		s.adopt(dev)
		s.setState(StatePermissionPending)
		if s.perm != nil {
			if err := s.perm.RequestPermission(dev); err != nil {
				s.log.Warn("usb permission request failed", zap.Error(err))
			}
		}
		s.log.Info("usb permission requested", zap.String("action", PermissionAction))
		return Loading[ConnState]()
	}

	if err := s.setup(dev); err != nil {
		return Failure[ConnState](err)
	}
	return Success(StateConnected)
}

// PermissionGranted 宿主授权回调；dev 为空时使用等待中的设备
// 拒绝授权时保持等待状态，不会自动转为错误。
func (s *Session) PermissionGranted(dev Device, granted bool) Result[ConnState] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateConnected {
		return Success(StateConnected)
	}
	if !granted {
		s.log.Info("usb permission denied")
		if s.State() == StatePermissionPending {
			return Loading[ConnState]()
		}
		return Failure[ConnState](ErrPermissionPending)
	}

	if dev == nil {
		dev = s.dev
	}
	if dev == nil || !dev.Authorized() {
		// 授权后重新枚举，拿到可打开的设备
		found, err := s.find()
		if err != nil {
			return Failure[ConnState](err)
		}
		dev = found
	}
	if !dev.Authorized() {
		s.adopt(dev)
		s.setState(StatePermissionPending)
		return Loading[ConnState]()
	}

	if err := s.setup(dev); err != nil {
		return Failure[ConnState](err)
	}
	return Success(StateConnected)
}

func (s *Session) find() (Device, error) {
	dev, err := s.drv.Find(s.opts.VendorID, s.opts.ProductID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find %04x:%04x: %w", s.opts.VendorID, s.opts.ProductID, err)
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: %04x:%04x", ErrNotFound, s.opts.VendorID, s.opts.ProductID)
	}
	return dev, nil
}

// adopt 记录设备，关闭之前持有的其他设备
func (s *Session) adopt(dev Device) {
	if s.dev != nil && s.dev != dev {
		_ = s.dev.Close()
	}
	s.dev = dev
}

// setup 打开设备、声明接口并解析端点
func (s *Session) setup(dev Device) error {
	fail := func(err error) error {
		if s.dev == dev {
			s.dev = nil
		}
		_ = dev.Close()
		s.setState(StateDisconnected)
		s.log.Error("usb setup failed", zap.Error(err))
		return err
	}

	h, err := dev.Open()
	if err != nil {
		return fail(fmt.Errorf("%w: open: %w", ErrTransferFailed, err))
	}

	eps, err := h.ClaimInterface(s.opts.Interface)
	if err != nil {
		_ = h.Close()
		return fail(fmt.Errorf("%w: claim interface %d: %w", ErrEndpointsUnavailable, s.opts.Interface, err))
	}

	in, out, ok := pickEndpoints(eps)
	if !ok {
		_ = h.ReleaseInterface(s.opts.Interface)
		_ = h.Close()
		return fail(fmt.Errorf("%w: %d endpoints on interface %d", ErrEndpointsUnavailable, len(eps), s.opts.Interface))
	}

	s.adopt(dev)
	s.gen.Add(1)
	s.link.Store(&link{h: h, in: in, out: out})
	s.log.Info("usb can converter ready",
		zap.Stringer("in", in),
		zap.Stringer("out", out),
		zap.Uint64("generation", s.gen.Load()))
	s.setState(StateConnected)
	return nil
}

// Disconnect 释放接口、关闭句柄并清空端点；重复调用无副作用
func (s *Session) Disconnect() Result[ConnState] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.releaseLocked(); err != nil {
		s.log.Warn("usb disconnect with errors", zap.Error(err))
		return Failure[ConnState](err)
	}
	return Success(StateDisconnected)
}

// markGone 设备已拔出：释放代数为 gen 的连接并回到断开状态
// 之后的 Connect 会重新枚举设备。gen 不是当前代数时（已重连或已断开）不做处理。
func (s *Session) markGone(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen.Load() != gen || s.link.Load() == nil {
		return false
	}
	s.log.Warn("usb device gone, releasing session", zap.Uint64("generation", gen))
	if err := s.releaseLocked(); err != nil {
		// 设备已不存在，释放失败是预期内的
		s.log.Debug("release after device loss", zap.Error(err))
	}
	return true
}

func (s *Session) releaseLocked() error {
	var errs []error
	if l := s.link.Swap(nil); l != nil {
		if err := l.h.ReleaseInterface(s.opts.Interface); err != nil {
			errs = append(errs, fmt.Errorf("release interface: %w", err))
		}
		if err := l.h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close handle: %w", err))
		}
	}
	if s.dev != nil {
		if err := s.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close device: %w", err))
		}
		s.dev = nil
	}
	s.setState(StateDisconnected)
	return errors.Join(errs...)
}

// Write 经OUT端点同步写，受写超时约束
func (s *Session) Write(ctx context.Context, buf []byte) (int, error) {
	l := s.link.Load()
	if l == nil {
		return 0, ErrNotConnected
	}
	wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()

	n, err := l.h.InterruptTransfer(wctx, l.out, buf)
	if err != nil {
		if errors.Is(err, ErrDeviceGone) {
			return n, err
		}
		return n, fmt.Errorf("%w: write %s: %w", ErrTransferFailed, l.out, err)
	}
	return n, nil
}

// Read 经IN端点轮询读；单次轮询超时视为无数据
func (s *Session) Read(ctx context.Context, buf []byte) (int, error) {
	l := s.link.Load()
	if l == nil {
		return 0, ErrNotConnected
	}
	rctx, cancel := context.WithTimeout(ctx, s.opts.PollTimeout)
	defer cancel()

	n, err := l.h.InterruptTransfer(rctx, l.in, buf)
	if err != nil {
		switch {
		case errors.Is(err, ErrDeviceGone):
			return n, err
		case ctx.Err() != nil:
			return n, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return n, nil
		}
		return n, fmt.Errorf("%w: read %s: %w", ErrTransferFailed, l.in, err)
	}
	return n, nil
}
