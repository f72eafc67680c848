package usbcan

import "time"

// ConnState 连接状态
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StatePermissionPending
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StatePermissionPending:
		return "permission_pending"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// StateChange 状态变更通知
type StateChange struct {
	State      ConnState
	Generation uint64
	At         time.Time
}

// Options 会话参数
type Options struct {
	VendorID     uint16
	ProductID    uint16
	Interface    int
	WriteTimeout time.Duration // 下行写超时
	PollTimeout  time.Duration // 接收轮询单次超时
	PollInterval time.Duration // 两次轮询之间的让出间隔
	SendInterval time.Duration // 下行帧最小间隔
	FrameBuffer  int           // 帧总线订阅默认缓冲
	DebugMode    bool          // 打印收发十六进制
}

// DefaultOptions 协议默认值
func DefaultOptions() Options {
	return Options{
		VendorID:     VendorID,
		ProductID:    ProductID,
		Interface:    0,
		WriteTimeout: 3000 * time.Millisecond,
		PollTimeout:  10 * time.Millisecond,
		PollInterval: time.Millisecond,
		SendInterval: 2 * time.Millisecond,
		FrameBuffer:  256,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.VendorID == 0 {
		o.VendorID = d.VendorID
	}
	if o.ProductID == 0 {
		o.ProductID = d.ProductID
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = d.PollTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.SendInterval < 0 {
		o.SendInterval = d.SendInterval
	}
	if o.FrameBuffer <= 0 {
		o.FrameBuffer = d.FrameBuffer
	}
	return o
}
