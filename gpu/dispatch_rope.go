package gpu

import "github.com/jgillich/go-opencl/cl"

// RoPEApply rotates q and k in place starting at absolute position p0,
// using the precomputed cos/sin tables. Dispatch shape is 3-D: sequence
// position × head × rotation-pair index, local size left to the driver.
func (d *Device) RoPEApply(p *Programs, q, k, cosTable, sinTable *Buffer, p0, seqLen, heads, headDim int) (*cl.Event, error) {
	kernel, err := p.RoPE.kernel("rope_apply")
	if err != nil {
		return nil, err
	}
	pairs := headDim / 2
	return enqueue3D(d.queue, kernel, seqLen, heads, pairs, 0, 0, 0,
		q.mem, k.mem, cosTable.mem, sinTable.mem, int32(p0), int32(seqLen), int32(heads), int32(headDim))
}
