package gpu

import "github.com/jgillich/go-opencl/cl"

// elementwiseGlobalSize computes the shared dispatch shape for the
// four-scalars-per-work-item elementwise kernels: silu, gelu,
// silu_gate_multiply, vector_add.
func elementwiseGlobalSize(n int) int {
	return roundUp(ceilDiv(n, 4), 256)
}

// SiLU applies x * sigmoid(x) elementwise to n half-floats, in place or
// into out.
func (d *Device) SiLU(p *Programs, in, out *Buffer, n int) (*cl.Event, error) {
	kernel, err := p.Activation.kernel("silu")
	if err != nil {
		return nil, err
	}
	return enqueue1D(d.queue, kernel, elementwiseGlobalSize(n), 256, in.mem, out.mem, int32(n))
}

// GELU applies the Gaussian error linear unit elementwise to n half-floats.
func (d *Device) GELU(p *Programs, in, out *Buffer, n int) (*cl.Event, error) {
	kernel, err := p.Activation.kernel("gelu")
	if err != nil {
		return nil, err
	}
	return enqueue1D(d.queue, kernel, elementwiseGlobalSize(n), 256, in.mem, out.mem, int32(n))
}

// SiLUGateMultiply computes silu(gate) * up elementwise into gate (the
// SwiGLU combine step), n half-floats per buffer.
func (d *Device) SiLUGateMultiply(p *Programs, gate, up *Buffer, n int) (*cl.Event, error) {
	kernel, err := p.Activation.kernel("silu_gate_multiply")
	if err != nil {
		return nil, err
	}
	return enqueue1D(d.queue, kernel, elementwiseGlobalSize(n), 256, gate.mem, up.mem, int32(n))
}

// VectorAdd computes out = a + b elementwise over n half-floats; out may
// alias a for an in-place residual accumulation.
func (d *Device) VectorAdd(p *Programs, a, b, out *Buffer, n int) (*cl.Event, error) {
	kernel, err := p.Activation.kernel("vector_add")
	if err != nil {
		return nil, err
	}
	return enqueue1D(d.queue, kernel, elementwiseGlobalSize(n), 256, a.mem, b.mem, out.mem, int32(n))
}
