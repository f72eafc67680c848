package app

import (
	"fmt"

	cfgpkg "github.com/limjaehoe/elincan/internal/config"
	"github.com/limjaehoe/elincan/internal/dispatch"
	"github.com/limjaehoe/elincan/internal/metrics"
	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/limjaehoe/elincan/internal/usbcan"
	"github.com/limjaehoe/elincan/internal/usbcan/libusb"
	"github.com/limjaehoe/elincan/internal/usbcan/replay"
	"go.uber.org/zap"
)

// USBDriver 驱动及其授权钩子；Grant 为 nil 表示授权由系统完成
type USBDriver struct {
	usbcan.Driver
	Grant func()
}

// NewUSBDriver 按配置选择 libusb 或回放驱动
func NewUSBDriver(cfg cfgpkg.USBConfig, logger *zap.Logger) (*USBDriver, error) {
	switch cfg.Driver {
	case "", "libusb":
		return &USBDriver{Driver: libusb.New(logger.Named("libusb"))}, nil
	case "replay":
		tr, err := replay.Load(cfg.ReplayPath)
		if err != nil {
			return nil, err
		}
		drv := replay.New(tr)
		logger.Info("replay driver loaded",
			zap.String("path", cfg.ReplayPath),
			zap.Int("chunks", len(tr.Chunks)),
			zap.Bool("loop", tr.Loop))
		return &USBDriver{Driver: drv, Grant: drv.Grant}, nil
	default:
		return nil, fmt.Errorf("unknown usb driver %q", cfg.Driver)
	}
}

// USBOptions 配置到会话参数
func USBOptions(cfg cfgpkg.USBConfig) usbcan.Options {
	return usbcan.Options{
		VendorID:     cfg.VendorID,
		ProductID:    cfg.ProductID,
		Interface:    cfg.Interface,
		WriteTimeout: cfg.WriteTimeout,
		PollTimeout:  cfg.PollTimeout,
		PollInterval: cfg.PollInterval,
		SendInterval: cfg.SendInterval,
		FrameBuffer:  cfg.FrameBuffer,
		DebugMode:    cfg.DebugMode,
	}
}

// NewBridge 创建 USB 边界并挂接指标回调
func NewBridge(drv usbcan.Driver, cfg cfgpkg.USBConfig, appm *metrics.AppMetrics, logger *zap.Logger) *usbcan.Bridge {
	perm := usbcan.PermissionRequesterFunc(func(dev usbcan.Device) error {
		logger.Warn("usb permission required, grant via POST /api/v1/connection/permission",
			zap.String("action", usbcan.PermissionAction))
		return nil
	})
	b := usbcan.NewBridge(drv, perm, USBOptions(cfg), logger.Named("usb"))
	if appm == nil {
		return b
	}
	b.SetCallbacks(usbcan.BridgeCallbacks{
		Receiver: usbcan.ReceiverCallbacks{
			ChunkReceived: func(n int) { appm.USBBytesReceived.Add(float64(n)) },
			FrameDecoded:  func(err error) { appm.USBFramesReceived.WithLabelValues(metrics.Result(err)).Inc() },
			ReadFailed:    func(error) { appm.USBReadErrors.Inc() },
		},
		FrameSent: func(err error) { appm.USBFramesSent.WithLabelValues(metrics.Result(err)).Inc() },
		FrameDrop: func(name string) { appm.BusDropsTotal.WithLabelValues(name).Inc() },
	})
	return b
}

// NewResolver 设备帧ID映射
func NewResolver(cfg cfgpkg.DevicesConfig) *dispatch.Resolver {
	byDevice := map[canusb.DeviceType][]int32{}
	for dev, ids := range map[canusb.DeviceType][]int32{
		canusb.DeviceCeiling: cfg.Ceiling,
		canusb.DeviceStand:   cfg.Stand,
		canusb.DeviceTable:   cfg.Table,
		canusb.DeviceZigbee:  cfg.Zigbee,
	} {
		if len(ids) > 0 {
			byDevice[dev] = ids
		}
	}
	return dispatch.NewResolver(byDevice)
}

// WireDispatchMetrics 分发计数
func WireDispatchMetrics(d *dispatch.Dispatcher, appm *metrics.AppMetrics) {
	if appm == nil {
		return
	}
	d.OnDispatch = func(dev canusb.DeviceType, cmd canusb.Command, _ error) {
		appm.DispatchTotal.WithLabelValues(dev.String(), cmd.String()).Inc()
	}
}
