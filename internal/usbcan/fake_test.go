package usbcan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	epIntIn   = EndpointDesc{Address: 0x81, Attributes: 0x03, MaxPacketSize: 64}
	epIntOut  = EndpointDesc{Address: 0x01, Attributes: 0x03, MaxPacketSize: 64}
	epBulkOut = EndpointDesc{Address: 0x02, Attributes: 0x02, MaxPacketSize: 64}
)

type fakeDriver struct {
	mu      sync.Mutex
	dev     *fakeDevice
	findErr error
	finds   int
	closed  atomic.Bool
}

func (d *fakeDriver) Find(vid, pid uint16) (Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finds++
	if d.findErr != nil {
		return nil, d.findErr
	}
	if d.dev == nil {
		return nil, fmt.Errorf("%w: %04x:%04x", ErrNotFound, vid, pid)
	}
	return d.dev, nil
}

func (d *fakeDriver) Close() error {
	d.closed.Store(true)
	return nil
}

func (d *fakeDriver) findCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finds
}

type fakeDevice struct {
	authorized atomic.Bool
	handle     *fakeHandle
	openErr    error
	closed     atomic.Int32
}

func newFakeDevice(authorized bool, eps ...EndpointDesc) *fakeDevice {
	d := &fakeDevice{handle: newFakeHandle(eps...)}
	d.authorized.Store(authorized)
	return d
}

func (d *fakeDevice) Authorized() bool { return d.authorized.Load() }

func (d *fakeDevice) Open() (Handle, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.handle, nil
}

func (d *fakeDevice) Close() error {
	d.closed.Add(1)
	return nil
}

type fakeHandle struct {
	eps      []EndpointDesc
	claimErr error
	writeErr error

	chunks chan []byte
	gone   atomic.Bool

	// hold 非空时，IN 读取在取消之后、hold 关闭之时才返回（模拟迟到的传输）
	hold    chan struct{}
	entered chan struct{}

	mu       sync.Mutex
	writes   [][]byte
	released atomic.Int32
	closed   atomic.Int32
}

func newFakeHandle(eps ...EndpointDesc) *fakeHandle {
	return &fakeHandle{eps: eps, chunks: make(chan []byte, 16)}
}

func (h *fakeHandle) ClaimInterface(num int) ([]EndpointDesc, error) {
	if h.claimErr != nil {
		return nil, h.claimErr
	}
	return h.eps, nil
}

func (h *fakeHandle) ReleaseInterface(num int) error {
	h.released.Add(1)
	return nil
}

func (h *fakeHandle) InterruptTransfer(ctx context.Context, ep EndpointDesc, buf []byte) (int, error) {
	if h.gone.Load() {
		return 0, fmt.Errorf("fake transfer: %w", ErrDeviceGone)
	}
	if !ep.IsIn() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.writeErr != nil {
			return 0, h.writeErr
		}
		h.writes = append(h.writes, append([]byte(nil), buf...))
		return len(buf), nil
	}

	if h.hold != nil {
		if h.entered != nil {
			close(h.entered)
			h.entered = nil
		}
		<-ctx.Done()
		<-h.hold
		h.hold = nil
		select {
		case c := <-h.chunks:
			return copy(buf, c), nil
		default:
			return 0, nil
		}
	}

	select {
	case c := <-h.chunks:
		return copy(buf, c), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *fakeHandle) Close() error {
	h.closed.Add(1)
	return nil
}

func (h *fakeHandle) written() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.writes...)
}

var errFake = errors.New("fake failure")
