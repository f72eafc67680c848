package canusb

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

// CRC-16/KERMIT：反射多项式 0x8408，初值 0，无最终异或
var kermitTable = crc16.MakeTable(crc16.CRC16_KERMIT)

// Checksum 计算帧校验值
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, kermitTable)
}

// HexString 以空格分隔的大写十六进制输出，如 "00 0E 1A"
func HexString(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// ParseHex 解析十六进制字符串，允许空格、冒号或连续书写
func ParseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "\t", "", "\n", "").Replace(s)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("parse hex: %w", err)
	}
	return b, nil
}
