package gpu

import "github.com/jgillich/go-opencl/cl"

// RMSNorm normalizes each of rows row-vectors of length dim against weight,
// writing dim half-floats per row into out. One work group per row.
func (d *Device) RMSNorm(p *Programs, in, weight, out *Buffer, rows, dim int, eps float32) (*cl.Event, error) {
	kernel, err := p.LayerNorm.kernel("rms_norm")
	if err != nil {
		return nil, err
	}
	global := rows * 256
	return enqueue1D(d.queue, kernel, global, 256, in.mem, weight.mem, out.mem, int32(dim), eps)
}

// Softmax normalizes rows rows of length dim in place (or in out, if in !=
// out), one work group per row.
func (d *Device) Softmax(p *Programs, in, out *Buffer, rows, dim int) (*cl.Event, error) {
	kernel, err := p.LayerNorm.kernel("softmax")
	if err != nil {
		return nil, err
	}
	global := rows * 256
	return enqueue1D(d.queue, kernel, global, 256, in.mem, out.mem, int32(dim))
}
