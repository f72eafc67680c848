package dispatch

import (
	"github.com/limjaehoe/elincan/internal/protocol/canusb"
)

// DefaultCeilingID 天轨默认帧ID
const DefaultCeilingID int32 = 0x040

// Resolver 帧ID到设备类型
// 限束器ID固定，其余由配置决定。
type Resolver struct {
	ids map[int32]canusb.DeviceType
}

// NewResolver 按设备类型列出帧ID；为空时使用默认天轨ID
func NewResolver(byDevice map[canusb.DeviceType][]int32) *Resolver {
	r := &Resolver{ids: make(map[int32]canusb.DeviceType)}
	if len(byDevice) == 0 {
		byDevice = map[canusb.DeviceType][]int32{canusb.DeviceCeiling: {DefaultCeilingID}}
	}
	for dev, ids := range byDevice {
		for _, id := range ids {
			r.ids[id] = dev
		}
	}
	for _, id := range canusb.CollimatorIDs() {
		r.ids[id] = canusb.DeviceCollimator
	}
	return r
}

// Resolve 未配置的ID返回 DeviceUnknown
func (r *Resolver) Resolve(id int32) canusb.DeviceType {
	if d, ok := r.ids[id]; ok {
		return d
	}
	return canusb.DeviceUnknown
}

// IDs 配置的映射副本
func (r *Resolver) IDs() map[int32]canusb.DeviceType {
	out := make(map[int32]canusb.DeviceType, len(r.ids))
	for k, v := range r.ids {
		out[k] = v
	}
	return out
}
