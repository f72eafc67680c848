package dispatch

import (
	"sync"

	"github.com/limjaehoe/elincan/internal/protocol/canusb"
)

// Packet 分发给处理器的数据
type Packet struct {
	Device  canusb.DeviceType
	Cmd     canusb.Command
	Payload []byte
}

// Handler 处理器函数类型
type Handler func(p Packet) error

type route struct {
	dev canusb.DeviceType
	cmd canusb.Command
}

// Table 路由表（设备类型+命令 -> handler，设备级兜底）
type Table struct {
	mu       sync.RWMutex
	handlers map[route]Handler
	fallback map[canusb.DeviceType]Handler
}

func NewTable() *Table {
	return &Table{
		handlers: make(map[route]Handler),
		fallback: make(map[canusb.DeviceType]Handler),
	}
}

// Register 注册精确路由
func (t *Table) Register(dev canusb.DeviceType, cmd canusb.Command, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[route{dev, cmd}] = h
}

// RegisterDevice 注册设备级兜底，命令未精确匹配时使用
func (t *Table) RegisterDevice(dev canusb.DeviceType, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback[dev] = h
}

// Route 未匹配的设备或命令均为空操作
func (t *Table) Route(p Packet) error {
	t.mu.RLock()
	h, ok := t.handlers[route{p.Device, p.Cmd}]
	if !ok {
		h = t.fallback[p.Device]
	}
	t.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h(p)
}

// Routes 已注册的精确路由数量
func (t *Table) Routes() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers)
}
