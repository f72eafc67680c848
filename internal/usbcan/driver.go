package usbcan

import (
	"context"
	"fmt"
)

// 转换器固定标识
const (
	VendorID  uint16 = 0x2542
	ProductID uint16 = 0x1020

	// PermissionAction 授权广播名称，宿主回调授权结果时携带
	PermissionAction = "android.hardware.usb.action.USB_DEVICE_ATTACHED"
)

// TransferInterrupt 中断传输（bmAttributes 低2位）
const TransferInterrupt uint8 = 0x03

// EndpointDesc 端点描述
type EndpointDesc struct {
	Address       uint8
	Attributes    uint8
	MaxPacketSize uint16
}

// IsIn bit7 为1表示 IN
func (e EndpointDesc) IsIn() bool { return e.Address&0x80 != 0 }

// Number 端点号
func (e EndpointDesc) Number() int { return int(e.Address & 0x0F) }

// TransferType 传输类型
func (e EndpointDesc) TransferType() uint8 { return e.Attributes & 0x03 }

func (e EndpointDesc) String() string {
	dir := "OUT"
	if e.IsIn() {
		dir = "IN"
	}
	return fmt.Sprintf("ep%d-%s(0x%02X)", e.Number(), dir, e.Address)
}

// Driver 设备枚举
type Driver interface {
	// Find 查找匹配 VID/PID 的设备，不存在时返回 ErrNotFound
	Find(vid, pid uint16) (Device, error)
	Close() error
}

// Device 已发现的设备
type Device interface {
	// Authorized 进程是否已获准访问该设备
	Authorized() bool
	Open() (Handle, error)
	Close() error
}

// Handle 已打开的设备句柄
type Handle interface {
	ClaimInterface(num int) ([]EndpointDesc, error)
	ReleaseInterface(num int) error
	// InterruptTransfer 按端点方向读或写；ctx 截止即超时，超时返回 (0, context.DeadlineExceeded)
	InterruptTransfer(ctx context.Context, ep EndpointDesc, buf []byte) (int, error)
	Close() error
}

// PermissionRequester 外部授权请求（由宿主实现）
type PermissionRequester interface {
	RequestPermission(dev Device) error
}

// PermissionRequesterFunc 函数适配
type PermissionRequesterFunc func(dev Device) error

func (f PermissionRequesterFunc) RequestPermission(dev Device) error { return f(dev) }

// pickEndpoints 找到一个中断IN与一个中断OUT端点
func pickEndpoints(eps []EndpointDesc) (in, out EndpointDesc, ok bool) {
	var haveIn, haveOut bool
	for _, ep := range eps {
		if ep.TransferType() != TransferInterrupt {
			continue
		}
		if ep.IsIn() && !haveIn {
			in, haveIn = ep, true
		}
		if !ep.IsIn() && !haveOut {
			out, haveOut = ep, true
		}
	}
	return in, out, haveIn && haveOut
}
