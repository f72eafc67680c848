package canusb

import (
	"encoding/binary"
	"fmt"
)

// Encode 构建20字节下行帧
//
//	[0]=0x00 [1]=0x00 [2]=L+10 | [3..6]=ID(BE) | [7]=0x00 [8]=L+2 [9]=L+1 [10]=cmd |
//	[11..11+L)=data | [11+L]=crcH [12+L]=crcL
//
// 校验范围为 [3, 11+L)。
func Encode(id [4]byte, cmd byte, data []byte) ([FrameSize]byte, error) {
	var buf [FrameSize]byte
	l := len(data)
	if l > MaxDataLen {
		return buf, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, l, MaxDataLen)
	}

	buf[0] = 0x00
	buf[1] = 0x00
	buf[2] = byte(l + 10)
	copy(buf[3:7], id[:])
	buf[7] = 0x00
	buf[8] = byte(l + 2)
	buf[9] = byte(l + 1)
	buf[10] = cmd
	copy(buf[11:], data)

	crc := Checksum(buf[3 : 11+l])
	binary.BigEndian.PutUint16(buf[11+l:], crc)
	return buf, nil
}

// EncodeFrame 按帧ID/命令/普通负载编码
func EncodeFrame(f *Frame) ([FrameSize]byte, error) {
	return Encode(IDBytes(f.ID), f.Cmd, f.Payload())
}

// IDBytes ID转4字节大端
func IDBytes(id int32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	return b
}

// AxisLimitBytes 轴限位数据：[axis, maxH, maxL, 0x00, minH, minL]
func AxisLimitBytes(axis, axisMax, axisMin int) []byte {
	return []byte{
		byte(axis),
		byte(axisMax >> 8),
		byte(axisMax),
		0x00,
		byte(axisMin >> 8),
		byte(axisMin),
	}
}
