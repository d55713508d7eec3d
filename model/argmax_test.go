package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func putHalf(buf []byte, i int, bits uint16) {
	binary.LittleEndian.PutUint16(buf[2*i:], bits)
}

func TestArgmaxPicksLargestValue(t *testing.T) {
	buf := make([]byte, 6)
	putHalf(buf, 0, 0x3400) // 0.25
	putHalf(buf, 1, 0x3c00) // 1.0
	putHalf(buf, 2, 0x3800) // 0.5
	assert.Equal(t, 1, Argmax(buf))
}

func TestArgmaxEarliestIndexOnTie(t *testing.T) {
	buf := make([]byte, 4)
	putHalf(buf, 0, 0x3c00) // 1.0
	putHalf(buf, 1, 0x3c00) // 1.0
	assert.Equal(t, 0, Argmax(buf), "argmax should pick the earliest index on a tie")
}

func TestHalfBitsToFloat32Subnormal(t *testing.T) {
	// exponent field 0, any mantissa: must flush to signed zero.
	assert.Equal(t, float32(0), halfBitsToFloat32(0x0200))
	v := halfBitsToFloat32(0x8200)
	assert.Equal(t, float32(0), v)
	assert.True(t, math.Signbit(float64(v)), "negative subnormal should flush to -0")
}

func TestHalfBitsToFloat32InfinitySaturates(t *testing.T) {
	assert.Equal(t, float32(1e30), halfBitsToFloat32(0x7c00))
	assert.Equal(t, float32(-1e30), halfBitsToFloat32(0xfc00))
	assert.False(t, math.IsInf(float64(halfBitsToFloat32(0x7c00)), 1),
		"+inf decode must saturate to 1e30, not a genuine IEEE infinity")
}

func TestHalfBitsToFloat32NaN(t *testing.T) {
	assert.True(t, math.IsNaN(float64(halfBitsToFloat32(0x7c01))))
}

func TestHalfBitsToFloat32NormalValues(t *testing.T) {
	cases := []struct {
		bits uint16
		want float32
	}{
		{0x3c00, 1.0},
		{0xbc00, -1.0},
		{0x4000, 2.0},
		{0x3800, 0.5},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, halfBitsToFloat32(c.bits))
	}
}
