// Package dispatch 按设备类型与命令码路由已解码的报文
package dispatch

import (
	"sync"

	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"go.uber.org/zap"
)

// Hook 业务回调
type Hook func(p Packet)

type hookKind int

const (
	hookKey hookKind = iota
	hookMotor
	hookSensor
	hookVersion
	hookCollimator
	hookZigbee
	hookRemoteKey
	hookFootKey
)

// Dispatcher 命令分发器
type Dispatcher struct {
	table *Table
	log   *zap.Logger

	mu    sync.RWMutex
	hooks map[hookKind][]Hook

	// OnDispatch 每次分发后调用（指标）
	OnDispatch func(dev canusb.DeviceType, cmd canusb.Command, err error)
}

// New 创建分发器并装载默认路由
func New(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		table: NewTable(),
		log:   log,
		hooks: make(map[hookKind][]Hook),
	}
	d.registerDefaults()
	return d
}

// Table 路由表，可覆盖默认路由
func (d *Dispatcher) Table() *Table { return d.table }

func (d *Dispatcher) registerDefaults() {
	// 天轨/立柱/床台结构一致；PM值已由PM过滤器处理
	for _, dev := range []canusb.DeviceType{canusb.DeviceCeiling, canusb.DeviceStand, canusb.DeviceTable} {
		d.table.Register(dev, canusb.CmdPMValue, noop)
		d.table.Register(dev, canusb.CmdStopPMValue, noop)
		d.table.Register(dev, canusb.CmdKeyValue, d.fire(hookKey))
		d.table.Register(dev, canusb.CmdMotorStatus, d.fire(hookMotor))
		d.table.Register(dev, canusb.CmdSensorStatus, d.fire(hookSensor))
		d.table.Register(dev, canusb.CmdVersionInfo, d.fire(hookVersion))
	}
	d.table.RegisterDevice(canusb.DeviceCollimator, d.fire(hookCollimator))
	d.table.RegisterDevice(canusb.DeviceZigbee, d.fire(hookZigbee))
}

func noop(Packet) error { return nil }

func (d *Dispatcher) fire(kind hookKind) Handler {
	return func(p Packet) error {
		d.mu.RLock()
		hs := append([]Hook(nil), d.hooks[kind]...)
		d.mu.RUnlock()
		for _, h := range hs {
			h(p)
		}
		return nil
	}
}

func (d *Dispatcher) on(kind hookKind, h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks[kind] = append(d.hooks[kind], h)
}

func (d *Dispatcher) OnKey(h Hook)              { d.on(hookKey, h) }
func (d *Dispatcher) OnMotorStatus(h Hook)      { d.on(hookMotor, h) }
func (d *Dispatcher) OnSensorStatus(h Hook)     { d.on(hookSensor, h) }
func (d *Dispatcher) OnVersion(h Hook)          { d.on(hookVersion, h) }
func (d *Dispatcher) OnCollimator(h Hook)       { d.on(hookCollimator, h) }
func (d *Dispatcher) OnZigbee(h Hook)           { d.on(hookZigbee, h) }
func (d *Dispatcher) OnRemoteControlKey(h Hook) { d.on(hookRemoteKey, h) }
func (d *Dispatcher) OnFootSwitchKey(h Hook)    { d.on(hookFootKey, h) }

// Dispatch 路由一条报文；未知设备或命令为空操作
func (d *Dispatcher) Dispatch(dev canusb.DeviceType, cmd canusb.Command, payload []byte) error {
	p := Packet{Device: dev, Cmd: cmd, Payload: payload}
	err := d.table.Route(p)
	if err != nil {
		d.log.Warn("dispatch handler failed",
			zap.Stringer("device", dev),
			zap.Stringer("cmd", cmd),
			zap.Error(err))
	}
	if d.OnDispatch != nil {
		d.OnDispatch(dev, cmd, err)
	}
	return err
}

// RemoteControlKey 遥控器按键
func (d *Dispatcher) RemoteControlKey(payload []byte) {
	_ = d.fire(hookRemoteKey)(Packet{Device: canusb.DeviceZigbee, Cmd: canusb.CmdZigbeeKeyValue, Payload: payload})
}

// FootSwitchKey 脚踏开关按键
func (d *Dispatcher) FootSwitchKey(payload []byte) {
	_ = d.fire(hookFootKey)(Packet{Device: canusb.DeviceZigbee, Cmd: canusb.CmdZigbeeKeyValue, Payload: payload})
}

// unitTypes 设备轴到逻辑单元编号
var unitTypes = map[canusb.DeviceType]map[int]int{
	canusb.DeviceCeiling: {1: 1, 2: 2, 3: 3, 4: 4},
	canusb.DeviceStand:   {3: 5, 4: 6},
	canusb.DeviceTable:   {1: 7, 3: 8},
}

// UnitType 未映射的组合返回 0
func (d *Dispatcher) UnitType(dev canusb.DeviceType, axis int) int {
	return unitTypes[dev][axis]
}
