package canusb

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// 编码错误
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrCollimatorFrame = errors.New("collimator frame has no downlink layout")

	// 解码错误
	ErrTruncated          = errors.New("truncated chunk")
	ErrPayloadOutOfBounds = errors.New("payload out of bounds")
)

// IsEncodingError 编码类错误
func IsEncodingError(err error) bool {
	return errors.Is(err, ErrPayloadTooLarge) || errors.Is(err, ErrCollimatorFrame)
}

// IsDecodingError 解码类错误
func IsDecodingError(err error) bool {
	return errors.Is(err, ErrTruncated) || errors.Is(err, ErrPayloadOutOfBounds)
}

// Decode 解析一个上行数据块
// 块长度不足3字节时返回 (nil, nil)，调用方直接丢弃。
//
// 内层布局：id[0..4) BE | 保留[4] | dlc[5] | 负载起点[6] | cmd[7] | 数据[8..]
// 限束器帧从 inner[6] 复制 dlc 字节，其他帧从 inner[8] 复制 max(dlc-2, 0) 字节。
func Decode(raw []byte) (*Frame, error) {
	if len(raw) < minChunkLen {
		return nil, nil
	}
	n := int(raw[2])
	if len(raw) < minChunkLen+n {
		return nil, fmt.Errorf("%w: declared %d, have %d", ErrTruncated, n, len(raw)-minChunkLen)
	}
	inner := raw[minChunkLen : minChunkLen+n]
	if len(inner) < innerMinLen {
		return nil, fmt.Errorf("%w: inner %d < %d", ErrTruncated, len(inner), innerMinLen)
	}

	f := &Frame{
		ID:  int32(binary.BigEndian.Uint32(inner[0:4])),
		DLC: inner[5],
		Cmd: inner[7],
	}

	if f.Collimator() {
		cnt := int(f.DLC)
		if err := checkRange(inner, 6, cnt, ColDataSize); err != nil {
			return nil, err
		}
		copy(f.DataColli[:], inner[6:6+cnt])
		return f, nil
	}

	cnt := int(f.DLC) - 2
	if cnt < 0 {
		cnt = 0
	}
	if err := checkRange(inner, 8, cnt, StdDataSize); err != nil {
		return nil, err
	}
	copy(f.Data[:], inner[8:8+cnt])
	return f, nil
}

func checkRange(inner []byte, off, cnt, capacity int) error {
	if off+cnt > len(inner) {
		return fmt.Errorf("%w: need [%d,%d) of %d", ErrPayloadOutOfBounds, off, off+cnt, len(inner))
	}
	if cnt > capacity {
		return fmt.Errorf("%w: %d bytes exceed %d-byte payload", ErrPayloadOutOfBounds, cnt, capacity)
	}
	return nil
}
