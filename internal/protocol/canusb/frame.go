package canusb

import (
	"bytes"
	"fmt"
)

// 帧布局常量
const (
	FrameSize   = 20  // 下行帧固定长度
	MaxDataLen  = 7   // 下行数据最大长度（受20字节帧与固定头偏移限制）
	StdDataSize = 6   // 普通负载长度
	ColDataSize = 8   // 限束器负载长度
	headerLen   = 8   // 校验区头部：ID(4) + 标志(1) + 长度(2) + 命令(1)
	innerMinLen = 8   // 上行内层最少字节：ID(4) + 保留(1) + DLC(1) + 长度(1) + 命令(1)
	minChunkLen = 3   // 上行块最短长度，不足则丢弃
	ReadBufSize = 128 // 接收循环单次读取缓冲
)

// collimatorIDs 使用8字节负载布局的帧ID
var collimatorIDs = map[int32]struct{}{
	256:  {},
	2032: {},
	2033: {},
}

// IsCollimatorID 判断ID是否属于限束器
func IsCollimatorID(id int32) bool {
	_, ok := collimatorIDs[id]
	return ok
}

// CollimatorIDs 返回限束器ID列表
func CollimatorIDs() []int32 {
	return []int32{256, 2032, 2033}
}

// Frame 一条解码后的CAN消息
// Data 与 DataColli 互斥，仅有一个被填充，另一个保持全零。
type Frame struct {
	ID        int32
	Cmd       uint8
	DLC       uint8
	Data      [StdDataSize]byte
	DataColli [ColDataSize]byte
}

// NewFrame 由数据构造帧，DLC按线上约定填写：普通帧为 len+2，限束器帧为 len
func NewFrame(id int32, cmd uint8, data []byte) (*Frame, error) {
	f := &Frame{ID: id, Cmd: cmd}
	if IsCollimatorID(id) {
		if len(data) > ColDataSize {
			return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(data), ColDataSize)
		}
		f.DLC = uint8(len(data))
		copy(f.DataColli[:], data)
		return f, nil
	}
	if len(data) > StdDataSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(data), StdDataSize)
	}
	f.DLC = uint8(len(data) + 2)
	copy(f.Data[:], data)
	return f, nil
}

// Collimator 是否为限束器布局
func (f *Frame) Collimator() bool {
	return IsCollimatorID(f.ID)
}

// Payload 返回被填充的负载（按DLC截取有效部分）
func (f *Frame) Payload() []byte {
	if f.Collimator() {
		n := int(f.DLC)
		if n > ColDataSize {
			n = ColDataSize
		}
		return f.DataColli[:n]
	}
	n := int(f.DLC) - 2
	if n < 0 {
		n = 0
	}
	if n > StdDataSize {
		n = StdDataSize
	}
	return f.Data[:n]
}

// Command 命令码枚举
func (f *Frame) Command() Command {
	return CommandFromValue(int(f.Cmd))
}

// Equal 按内容比较两帧（两个负载都参与比较）
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.ID == o.ID && f.Cmd == o.Cmd && f.DLC == o.DLC &&
		bytes.Equal(f.Data[:], o.Data[:]) &&
		bytes.Equal(f.DataColli[:], o.DataColli[:])
}

func (f *Frame) String() string {
	return fmt.Sprintf("id=0x%X cmd=0x%02X dlc=%d data=[%s]", f.ID, f.Cmd, f.DLC, HexString(f.Payload()))
}
