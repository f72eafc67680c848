// Package pmfilter 电位器(PM)轴位置的去噪过滤
//
// 每个 (设备类型, 轴) 保存一个上次值，差值大于1才视为有效变化。
// 天轨仅在有效变化时提交全部缓存；立柱与床台每次调用都覆盖缓存。
package pmfilter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/limjaehoe/elincan/internal/protocol/canusb"
	"github.com/limjaehoe/elincan/internal/pubsub"
	"go.uber.org/zap"
)

// ErrShortSample 样本不足3字节（轴+16位值）
var ErrShortSample = errors.New("pm sample too short")

// sampleLen 轴(1) + 值(2, 大端)
const sampleLen = 3

// Dispatcher 有效变化的下游
type Dispatcher interface {
	Dispatch(dev canusb.DeviceType, cmd canusb.Command, payload []byte) error
	UnitType(dev canusb.DeviceType, axis int) int
}

// ChangeResult 过滤结果；Changed 为 false 即无变化
type ChangeResult struct {
	Changed  bool              `json:"changed"`
	Device   canusb.DeviceType `json:"device"`
	Axis     int               `json:"axis"`
	Value    int               `json:"value"`
	UnitType int               `json:"unitType"`
	At       time.Time         `json:"at"`
}

// NoChange 无有效变化
var NoChange = ChangeResult{}

// 缓存槽位
const (
	slotCeilingX = iota
	slotCeilingY
	slotCeilingZ
	slotCeilingA
	slotStandZ
	slotStandA
	slotTableX
	slotTableZ
	slotCount
)

var slotNames = [slotCount]string{
	"ceiling.x", "ceiling.y", "ceiling.z", "ceiling.a",
	"stand.z", "stand.a",
	"table.x", "table.z",
}

// group 一种设备的轴映射与提交策略
type group struct {
	axes        map[int]int // 轴号 -> 槽位
	slots       []int
	alwaysStore bool
}

var groups = map[canusb.DeviceType]group{
	canusb.DeviceCeiling: {
		axes:  map[int]int{1: slotCeilingX, 2: slotCeilingY, 3: slotCeilingZ, 4: slotCeilingA},
		slots: []int{slotCeilingX, slotCeilingY, slotCeilingZ, slotCeilingA},
	},
	canusb.DeviceStand: {
		axes:        map[int]int{3: slotStandZ, 4: slotStandA},
		slots:       []int{slotStandZ, slotStandA},
		alwaysStore: true,
	},
	canusb.DeviceTable: {
		axes:        map[int]int{1: slotTableX, 3: slotTableZ},
		slots:       []int{slotTableX, slotTableZ},
		alwaysStore: true,
	},
}

// Filter PM过滤器，缓存随实例存活
type Filter struct {
	mu   sync.Mutex
	prev [slotCount]int

	disp    Dispatcher
	changes *pubsub.Bus[ChangeResult]
	log     *zap.Logger
	now     func() time.Time
}

// New 创建过滤器
func New(disp Dispatcher, log *zap.Logger) *Filter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Filter{
		disp:    disp,
		changes: pubsub.New[ChangeResult](),
		log:     log,
		now:     time.Now,
	}
}

// Changes 有效变化总线
func (f *Filter) Changes() *pubsub.Bus[ChangeResult] { return f.changes }

// Close 关闭变化总线
func (f *Filter) Close() { f.changes.Close() }

// Process 处理一个PM样本
func (f *Filter) Process(dev canusb.DeviceType, sample []byte, cmd canusb.Command) (ChangeResult, error) {
	if len(sample) < sampleLen {
		return NoChange, fmt.Errorf("%w: %d bytes", ErrShortSample, len(sample))
	}
	axis := int(sample[0])
	value := int(binary.BigEndian.Uint16(sample[1:3]))

	g, ok := groups[dev]
	if !ok {
		return NoChange, nil
	}
	if !f.apply(g, axis, value) {
		f.log.Debug("pm filtered",
			zap.Stringer("device", dev), zap.Int("axis", axis), zap.Int("value", value))
		return NoChange, nil
	}

	payload := append([]byte(nil), sample[:sampleLen]...)
	res := ChangeResult{
		Changed: true,
		Device:  dev,
		Axis:    axis,
		Value:   value,
		At:      f.now(),
	}
	if f.disp != nil {
		if err := f.disp.Dispatch(dev, cmd, payload); err != nil {
			f.log.Warn("pm dispatch failed", zap.Stringer("device", dev), zap.Error(err))
		}
		res.UnitType = f.disp.UnitType(dev, axis)
	}

	f.log.Debug("pm changed",
		zap.Stringer("device", dev),
		zap.Int("axis", axis),
		zap.Int("value", value),
		zap.Int("unit_type", res.UnitType))
	f.changes.Publish(res)
	return res, nil
}

// apply 更新缓存并返回是否有效变化
func (f *Filter) apply(g group, axis, value int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur := f.prev
	if slot, ok := g.axes[axis]; ok {
		cur[slot] = value
	}

	changed := false
	for _, s := range g.slots {
		if significant(f.prev[s], cur[s]) {
			changed = true
			break
		}
	}

	if changed || g.alwaysStore {
		for _, s := range g.slots {
			f.prev[s] = cur[s]
		}
	}
	return changed
}

func significant(prev, cur int) bool {
	d := prev - cur
	if d < 0 {
		d = -d
	}
	return d > 1
}

// Snapshot 当前缓存值
func (f *Filter) Snapshot() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, slotCount)
	for i, name := range slotNames {
		out[name] = f.prev[i]
	}
	return out
}
