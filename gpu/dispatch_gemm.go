package gpu

import "github.com/jgillich/go-opencl/cl"

// GEMMNaive computes C = A·B for an M×K times K×N product with one
// work-item producing one scalar of C. 2-D dispatch padded to 16×16 tiles.
func (d *Device) GEMMNaive(p *Programs, a, b, c *Buffer, m, k, n int) (*cl.Event, error) {
	kernel, err := p.GEMM.kernel("gemm_naive")
	if err != nil {
		return nil, err
	}
	gx := roundUp(m, 16)
	gy := roundUp(n, 16)
	return enqueue2D(d.queue, kernel, gx, gy, 16, 16, a.mem, b.mem, c.mem, int32(m), int32(k), int32(n))
}

// GEMMTiled is the local-memory-tiled variant, 8×8 work groups.
func (d *Device) GEMMTiled(p *Programs, a, b, c *Buffer, m, k, n int) (*cl.Event, error) {
	kernel, err := p.GEMM.kernel("gemm_tiled")
	if err != nil {
		return nil, err
	}
	gx := roundUp(m, 8)
	gy := roundUp(n, 8)
	return enqueue2D(d.queue, kernel, gx, gy, 8, 8, a.mem, b.mem, c.mem, int32(m), int32(k), int32(n))
}

// GEMMImage computes C = A·B where B is a WeightImage; each work-item
// produces four columns of C.
func (d *Device) GEMMImage(p *Programs, a *Buffer, b *WeightImage, c *Buffer, m, k, n int) (*cl.Event, error) {
	kernel, err := p.GEMM.kernel("gemm_image")
	if err != nil {
		return nil, err
	}
	gx := roundUp(m, 16)
	gy := roundUp(ceilDiv(n, 4), 4)
	return enqueue2D(d.queue, kernel, gx, gy, 16, 4, a.mem, b.img, c.mem, int32(m), int32(k), int32(n))
}

// GEMV computes a row vector (length K) times a WeightImage of shape
// [K, N], producing N half-float outputs into c. Four output elements per
// group.
func (d *Device) GEMV(p *Programs, a *Buffer, b *WeightImage, c *Buffer, k, n int) (*cl.Event, error) {
	kernel, err := p.GEMM.kernel("gemv")
	if err != nil {
		return nil, err
	}
	groups := ceilDiv(n, 4)
	global := groups * 256
	return enqueue1D(d.queue, kernel, global, 256, a.mem, b.img, c.mem, int32(k), int32(n))
}
