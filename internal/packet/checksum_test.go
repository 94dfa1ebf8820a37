package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 经典示例头部，校验和为 0xb861
var sampleHeader = []byte{
	0x45, 0x00, 0x00, 0x73, 0x00, 0x00, 0x40, 0x00,
	0x40, 0x11, 0xb8, 0x61, 0xc0, 0xa8, 0x00, 0x01,
	0xc0, 0xa8, 0x00, 0xc7,
}

func TestHeaderChecksum(t *testing.T) {
	hdr := append([]byte(nil), sampleHeader...)

	assert.Equal(t, uint16(0xb861), HeaderChecksum(hdr))
	assert.True(t, VerifyHeaderChecksum(hdr))
	// 计算过程不修改输入
	assert.Equal(t, sampleHeader, hdr)
}

func TestHeaderChecksumMatchesZeroedField(t *testing.T) {
	hdr := append([]byte(nil), sampleHeader...)
	hdr[10], hdr[11] = 0, 0

	assert.Equal(t, uint16(0xb861), Checksum(hdr))
}

func TestVerifyHeaderChecksumSingleByteCorruption(t *testing.T) {
	for i := range sampleHeader {
		hdr := append([]byte(nil), sampleHeader...)
		hdr[i] ^= 0x5a
		assert.False(t, VerifyHeaderChecksum(hdr), "byte %d", i)
	}
}

func TestVerifyHeaderChecksumShortHeader(t *testing.T) {
	require.False(t, VerifyHeaderChecksum(sampleHeader[:12]))
}

func TestChecksumOddLength(t *testing.T) {
	// 奇数长度时末字节按高位处理：0x0102 + 0x0300 = 0x0402
	assert.Equal(t, ^uint16(0x0402), Checksum([]byte{0x01, 0x02, 0x03}))
}

func TestChecksumCarryFold(t *testing.T) {
	// 0xffff + 0x0001 = 0x10000 -> 回卷为 0x0001
	assert.Equal(t, ^uint16(0x0001), Checksum([]byte{0xff, 0xff, 0x00, 0x01}))
}
