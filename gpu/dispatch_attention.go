package gpu

import (
	"math"

	"github.com/jgillich/go-opencl/cl"
)

// AttentionPrefill runs causal multi-head attention over a freshly
// prefilled block of S query positions against a key/value cache that
// already holds p0 prior positions plus the S new ones just appended.
// One work group per (position, head) pair.
func (d *Device) AttentionPrefill(p *Programs, q, kCache, vCache, out *Buffer, seqLen, p0, heads, headDim int) (*cl.Event, error) {
	kernel, err := p.Attention.kernel("attention_prefill")
	if err != nil {
		return nil, err
	}
	scale := float32(1.0 / math.Sqrt(float64(headDim)))
	global := seqLen * heads * 256
	return enqueue1D(d.queue, kernel, global, 256,
		q.mem, kCache.mem, vCache.mem, out.mem,
		int32(seqLen), int32(p0), int32(heads), int32(headDim), scale)
}

// AttentionDecode runs the single-query decode-step attention of Q against
// the full cache of length p0+1. One work group per head.
func (d *Device) AttentionDecode(p *Programs, q, kCache, vCache, out *Buffer, p0, heads, headDim int) (*cl.Event, error) {
	kernel, err := p.Attention.kernel("attention_decode")
	if err != nil {
		return nil, err
	}
	scale := float32(1.0 / math.Sqrt(float64(headDim)))
	global := heads * 256
	return enqueue1D(d.queue, kernel, global, 256,
		q.mem, kCache.mem, vCache.mem, out.mem,
		int32(p0), int32(heads), int32(headDim), scale)
}
