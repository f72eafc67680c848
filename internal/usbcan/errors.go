package usbcan

import "errors"

// 传输层错误
var (
	ErrNotFound             = errors.New("usb can converter not found")
	ErrPermissionPending    = errors.New("usb permission pending")
	ErrEndpointsUnavailable = errors.New("interrupt endpoints unavailable")
	ErrNotConnected         = errors.New("usb not connected")
	ErrTransferFailed       = errors.New("usb transfer failed")

	// ErrDeviceGone 设备句柄丢失（拔出等），驱动需用 %w 包装返回
	ErrDeviceGone = errors.New("usb device gone")
)

// IsTransportError 是否属于传输层错误
func IsTransportError(err error) bool {
	for _, e := range []error{ErrNotFound, ErrPermissionPending, ErrEndpointsUnavailable, ErrNotConnected, ErrTransferFailed, ErrDeviceGone} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
