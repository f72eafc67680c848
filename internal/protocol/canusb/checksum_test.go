package canusb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{"空数据", nil, 0x0000},
		{"KERMIT标准校验值", []byte("123456789"), 0x2189},
		{"单字节", []byte{0xAB}, 0x1BD9},
		{"两字节", []byte{0x01, 0x02}, 0x3ACA},
		{"下行帧校验区", []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x08, 0x07, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, 0x6140},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.expected {
				t.Errorf("Checksum() = 0x%04X, want 0x%04X", got, tt.expected)
			}
		})
	}
}

func TestChecksumOrderSensitive(t *testing.T) {
	assert.NotEqual(t, Checksum([]byte{0x01, 0x02}), Checksum([]byte{0x02, 0x01}))
	assert.Equal(t, uint16(0x2239), Checksum([]byte{0x02, 0x01}))
}

func TestChecksumDeterministic(t *testing.T) {
	data := []byte{0x10, 0x20, 0x30, 0x40}
	assert.Equal(t, Checksum(data), Checksum(data))
}

func TestHexString(t *testing.T) {
	assert.Equal(t, "", HexString(nil))
	assert.Equal(t, "00 0E FF", HexString([]byte{0x00, 0x0E, 0xFF}))
}

func TestParseHex(t *testing.T) {
	b, err := ParseHex("00 0e:FF")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x0E, 0xFF}, b)

	b, err = ParseHex("0x0102")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, b)

	_, err = ParseHex("0G")
	assert.Error(t, err)
}
