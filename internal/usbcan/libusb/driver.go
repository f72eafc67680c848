// Package libusb 基于 libusb(gousb) 的 USB 驱动实现
package libusb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/gousb"
	"github.com/limjaehoe/elincan/internal/usbcan"
	"go.uber.org/zap"
)

// Driver gousb 驱动
type Driver struct {
	ctx *gousb.Context
	log *zap.Logger
}

// New 创建 libusb 上下文
func New(log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{ctx: gousb.NewContext(), log: log}
}

// Find 打开第一个匹配 VID/PID 的设备
// 无权限时返回未授权设备，授权后由会话重新枚举。
func (d *Driver) Find(vid, pid uint16) (usbcan.Device, error) {
	var matched []*gousb.DeviceDesc
	devs, err := d.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor != gousb.ID(vid) || desc.Product != gousb.ID(pid) {
			return false
		}
		matched = append(matched, desc)
		return true
	})

	if len(devs) > 0 {
		for _, extra := range devs[1:] {
			_ = extra.Close()
		}
		if err != nil {
			d.log.Debug("open devices partial failure", zap.Error(err))
		}
		return &device{dev: devs[0], desc: devs[0].Desc, log: d.log}, nil
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %04x:%04x", usbcan.ErrNotFound, vid, pid)
	}
	if errors.Is(err, gousb.ErrorAccess) {
		d.log.Warn("usb device access denied", zap.String("device", matched[0].String()))
		return &device{desc: matched[0], log: d.log}, nil
	}
	return nil, fmt.Errorf("open %04x:%04x: %w", vid, pid, mapErr(err))
}

// Close 释放 libusb 上下文
func (d *Driver) Close() error {
	return d.ctx.Close()
}

type device struct {
	dev  *gousb.Device // 为空表示未获准访问
	desc *gousb.DeviceDesc
	log  *zap.Logger
}

func (d *device) Authorized() bool { return d.dev != nil }

func (d *device) String() string {
	if d.desc == nil {
		return "usb device"
	}
	return d.desc.String()
}

func (d *device) Open() (usbcan.Handle, error) {
	if d.dev == nil {
		return nil, fmt.Errorf("open %s: %w", d, gousb.ErrorAccess)
	}
	if err := d.dev.SetAutoDetach(true); err != nil {
		d.log.Debug("set auto detach", zap.Error(err))
	}
	return &handle{dev: d.dev}, nil
}

func (d *device) Close() error {
	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	d.dev = nil
	return mapErr(err)
}

// handle 已声明的配置与接口，以及按地址缓存的端点
type handle struct {
	dev *gousb.Device

	mu   sync.Mutex
	cfg  *gousb.Config
	intf *gousb.Interface
	in   map[uint8]*gousb.InEndpoint
	out  map[uint8]*gousb.OutEndpoint
}

func (h *handle) ClaimInterface(num int) ([]usbcan.EndpointDesc, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfgNum, err := h.dev.ActiveConfigNum()
	if err != nil || cfgNum == 0 {
		cfgNum = 1
	}
	cfg, err := h.dev.Config(cfgNum)
	if err != nil {
		return nil, fmt.Errorf("config %d: %w", cfgNum, mapErr(err))
	}
	intf, err := cfg.Interface(num, 0)
	if err != nil {
		_ = cfg.Close()
		return nil, fmt.Errorf("interface %d: %w", num, mapErr(err))
	}

	h.cfg, h.intf = cfg, intf
	h.in = make(map[uint8]*gousb.InEndpoint)
	h.out = make(map[uint8]*gousb.OutEndpoint)

	eps := make([]usbcan.EndpointDesc, 0, len(intf.Setting.Endpoints))
	for _, ep := range intf.Setting.Endpoints {
		eps = append(eps, toEndpointDesc(ep))
	}
	return eps, nil
}

func (h *handle) ReleaseInterface(num int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.intf != nil {
		h.intf.Close()
		h.intf = nil
	}
	h.in, h.out = nil, nil
	if h.cfg != nil {
		err := h.cfg.Close()
		h.cfg = nil
		return mapErr(err)
	}
	return nil
}

func (h *handle) InterruptTransfer(ctx context.Context, ep usbcan.EndpointDesc, buf []byte) (int, error) {
	var (
		n   int
		err error
	)
	if ep.IsIn() {
		var in *gousb.InEndpoint
		if in, err = h.inEndpoint(ep); err != nil {
			return 0, err
		}
		n, err = in.ReadContext(ctx, buf)
	} else {
		var out *gousb.OutEndpoint
		if out, err = h.outEndpoint(ep); err != nil {
			return 0, err
		}
		n, err = out.WriteContext(ctx, buf)
	}
	if err == nil {
		return n, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return n, ctxErr
	}
	return n, mapErr(err)
}

func (h *handle) inEndpoint(ep usbcan.EndpointDesc) (*gousb.InEndpoint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.intf == nil {
		return nil, usbcan.ErrNotConnected
	}
	if e, ok := h.in[ep.Address]; ok {
		return e, nil
	}
	e, err := h.intf.InEndpoint(ep.Number())
	if err != nil {
		return nil, fmt.Errorf("in endpoint %s: %w", ep, mapErr(err))
	}
	h.in[ep.Address] = e
	return e, nil
}

func (h *handle) outEndpoint(ep usbcan.EndpointDesc) (*gousb.OutEndpoint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.intf == nil {
		return nil, usbcan.ErrNotConnected
	}
	if e, ok := h.out[ep.Address]; ok {
		return e, nil
	}
	e, err := h.intf.OutEndpoint(ep.Number())
	if err != nil {
		return nil, fmt.Errorf("out endpoint %s: %w", ep, mapErr(err))
	}
	h.out[ep.Address] = e
	return e, nil
}

// Close 设备由 device.Close 关闭，这里只兜底释放接口
func (h *handle) Close() error {
	return h.ReleaseInterface(0)
}

func toEndpointDesc(ep gousb.EndpointDesc) usbcan.EndpointDesc {
	return usbcan.EndpointDesc{
		Address:       uint8(ep.Address),
		Attributes:    uint8(ep.TransferType),
		MaxPacketSize: uint16(ep.MaxPacketSize),
	}
}

// mapErr 将 libusb 错误映射为传输层错误
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.ErrorNoDevice), errors.Is(err, gousb.TransferNoDevice):
		return fmt.Errorf("%w: %w", usbcan.ErrDeviceGone, err)
	case errors.Is(err, gousb.ErrorTimeout), errors.Is(err, gousb.TransferTimedOut):
		return context.DeadlineExceeded
	}
	return err
}
