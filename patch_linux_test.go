//go:build linux

package hookingo

import (
	"math"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestWriteBytesRoundTrip(t *testing.T) {
	addr := codePage(t, []byte{0xEB, 0x02, 0xCC, 0xCC})

	assert.NoError(t, WriteBytes(addr, []byte{0x90, 0x90}))
	got := ReadBytes(addr, 3)
	assert.Equal(t, byte(0x90), got[0])
	assert.Equal(t, byte(0x90), got[1])
	assert.Equal(t, byte(0xCC), got[2])
}

func TestWriteValue(t *testing.T) {
	addr := codePage(t, make([]byte, 16))

	assert.NoError(t, WriteValue(addr, float32(1.25)))
	assert.NoError(t, WriteValue(addr+4, int32(6000)))
	assert.NoError(t, WriteValue(addr+8, uint8(0xEB)))

	b := ReadBytes(addr, 9)
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	assert.Equal(t, float32(1.25), math.Float32frombits(bits))
	assert.Equal(t, byte(0x70), b[4])
	assert.Equal(t, byte(0x17), b[5])
	assert.Equal(t, byte(0xEB), b[8])
}

func TestPatchSite(t *testing.T) {
	addr := codePage(t, []byte{0x74, 0x10, 0x90})
	p := NewPatchSite(addr, []byte{0xEB})
	assert.Equal(t, byte(0x74), p.Original[0])
	assert.False(t, p.Applied())

	assert.NoError(t, p.Apply())
	first := ReadBytes(addr, 3)
	assert.NoError(t, p.Apply())
	second := ReadBytes(addr, 3)
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
	assert.True(t, p.Applied())

	assert.NoError(t, p.Revert())
	assert.False(t, p.Applied())
	assert.Equal(t, byte(0x74), ReadBytes(addr, 1)[0])
}
