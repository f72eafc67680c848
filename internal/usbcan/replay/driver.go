// Package replay 回放抓包数据的 USB 驱动，用于无硬件调试与测试
package replay

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/limjaehoe/elincan/internal/usbcan"
	"gopkg.in/yaml.v3"
)

// Trace 回放脚本
//
//	authorized: true
//	loop: false
//	interval: 10ms
//	chunks:
//	  - "00 00 10 00 00 00 40 00 08 07 00 01 02 03 04 05 06 61 40 00"
type Trace struct {
	Authorized bool          `yaml:"authorized"`
	Loop       bool          `yaml:"loop"`
	Interval   time.Duration `yaml:"interval"`
	Chunks     []string      `yaml:"chunks"`
}

// Load 读取 YAML 回放脚本
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return Parse(data)
}

// Parse 解析回放脚本并校验每个数据块
func Parse(data []byte) (*Trace, error) {
	var t Trace
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	for i, c := range t.Chunks {
		if _, err := canusb.ParseHex(c); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return &t, nil
}

// 回放设备的端点：中断 IN 0x81 / 中断 OUT 0x01
var endpoints = []usbcan.EndpointDesc{
	{Address: 0x81, Attributes: usbcan.TransferInterrupt, MaxPacketSize: 64},
	{Address: 0x01, Attributes: usbcan.TransferInterrupt, MaxPacketSize: 64},
}

// Driver 回放驱动
type Driver struct {
	mu      sync.Mutex
	trace   *Trace
	chunks  [][]byte
	granted bool
	writes  [][]byte
	closed  bool
}

// New 由回放脚本创建驱动
func New(t *Trace) *Driver {
	d := &Driver{trace: t, granted: t.Authorized}
	for _, c := range t.Chunks {
		b, _ := canusb.ParseHex(c)
		d.chunks = append(d.chunks, b)
	}
	return d
}

// Grant 模拟宿主授权
func (d *Driver) Grant() {
	d.mu.Lock()
	d.granted = true
	d.mu.Unlock()
}

// Written 已写出的数据
func (d *Driver) Written() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writes))
	copy(out, d.writes)
	return out
}

func (d *Driver) Find(vid, pid uint16) (usbcan.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("%w: replay driver closed", usbcan.ErrNotFound)
	}
	return &device{drv: d, authorized: d.granted}, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

type device struct {
	drv        *Driver
	authorized bool
}

func (v *device) Authorized() bool { return v.authorized }

func (v *device) Open() (usbcan.Handle, error) {
	if !v.authorized {
		return nil, usbcan.ErrPermissionPending
	}
	return &handle{drv: v.drv}, nil
}

func (v *device) Close() error { return nil }

type handle struct {
	drv     *Driver
	mu      sync.Mutex
	pos     int
	claimed bool
	last    time.Time
}

func (h *handle) ClaimInterface(num int) ([]usbcan.EndpointDesc, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if num != 0 {
		return nil, fmt.Errorf("replay device has no interface %d", num)
	}
	h.claimed = true
	return endpoints, nil
}

func (h *handle) ReleaseInterface(int) error {
	h.mu.Lock()
	h.claimed = false
	h.mu.Unlock()
	return nil
}

func (h *handle) InterruptTransfer(ctx context.Context, ep usbcan.EndpointDesc, buf []byte) (int, error) {
	h.mu.Lock()
	if !h.claimed {
		h.mu.Unlock()
		return 0, usbcan.ErrNotConnected
	}
	h.mu.Unlock()

	if !ep.IsIn() {
		h.drv.mu.Lock()
		h.drv.writes = append(h.drv.writes, append([]byte(nil), buf...))
		h.drv.mu.Unlock()
		return len(buf), nil
	}

	chunk, wait := h.next()
	if chunk == nil {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			h.unread()
			return 0, ctx.Err()
		}
	}
	return copy(buf, chunk), nil
}

// next 取下一个数据块与需要等待的时长；脚本结束且不循环时返回 nil
func (h *handle) next() ([]byte, time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	chunks := h.drv.chunks
	if len(chunks) == 0 {
		return nil, 0
	}
	if h.pos >= len(chunks) {
		if !h.drv.trace.Loop {
			return nil, 0
		}
		h.pos = 0
	}
	c := chunks[h.pos]
	h.pos++

	var wait time.Duration
	if iv := h.drv.trace.Interval; iv > 0 && !h.last.IsZero() {
		wait = iv - time.Since(h.last)
	}
	h.last = time.Now().Add(wait)
	return c, wait
}

func (h *handle) unread() {
	h.mu.Lock()
	if h.pos > 0 {
		h.pos--
	}
	h.last = time.Time{}
	h.mu.Unlock()
}

func (h *handle) Close() error { return nil }
