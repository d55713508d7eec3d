package gpu

import (
	"math"

	"github.com/x448/float16"
)

// ropeBase is θ₀ in the rotary embedding angle formula.
const ropeBase = 10000.0

// RoPETables holds the device-resident cos/sin tables, each of length
// maxContext * headDim/2 half-floats, indexed [position][pair].
type RoPETables struct {
	Cos *Buffer
	Sin *Buffer
}

// BuildRoPETables materializes and uploads the rotary embedding tables for
// head dimension headDim over positions [0, maxContext). Exponent overflow
// on the half conversion saturates to infinity; underflow flushes to zero,
// both of which are float16.Fromfloat32's documented behavior.
func (d *Device) BuildRoPETables(headDim, maxContext int) (*RoPETables, error) {
	pairs := headDim / 2
	cosHost := make([]float16.Float16, maxContext*pairs)
	sinHost := make([]float16.Float16, maxContext*pairs)

	for pos := 0; pos < maxContext; pos++ {
		for i := 0; i < pairs; i++ {
			exponent := -2.0 * float64(i) / float64(headDim)
			freq := math.Pow(ropeBase, exponent)
			angle := float64(pos) * freq
			idx := pos*pairs + i
			cosHost[idx] = float16.Fromfloat32(float32(math.Cos(angle)))
			sinHost[idx] = float16.Fromfloat32(float32(math.Sin(angle)))
		}
	}

	cosBytes := float16SliceToBytes(cosHost)
	sinBytes := float16SliceToBytes(sinHost)

	cosBuf, err := d.CreateBuffer(len(cosBytes), ReadOnly, cosBytes)
	if err != nil {
		return nil, err
	}
	sinBuf, err := d.CreateBuffer(len(sinBytes), ReadOnly, sinBytes)
	if err != nil {
		cosBuf.Release()
		return nil, err
	}

	return &RoPETables{Cos: cosBuf, Sin: sinBuf}, nil
}

// Release frees the underlying device buffers.
func (t *RoPETables) Release() {
	if t == nil {
		return
	}
	t.Cos.Release()
	t.Sin.Release()
}

// float16SliceToBytes reinterprets a []float16.Float16 as its little-endian
// byte representation for upload via CreateBuffer's hostPtr path.
func float16SliceToBytes(vals []float16.Float16) []byte {
	out := make([]byte, len(vals)*2)
	for i, v := range vals {
		bits := uint16(v)
		out[2*i] = byte(bits)
		out[2*i+1] = byte(bits >> 8)
	}
	return out
}
