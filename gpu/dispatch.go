package gpu

import (
	"fmt"

	"github.com/jgillich/go-opencl/cl"
)

// Programs holds the seven compiled kernel programs the dispatch layer
// draws kernels from, one per source file named in the model driver's
// kernel directory.
type Programs struct {
	GEMM       *Program
	Attention  *Program
	LayerNorm  *Program
	Activation *Program
	RoPE       *Program
	Embedding  *Program
	Vision     *Program
}

// Release releases all seven programs. Safe to call with a partially
// populated Programs (e.g. on a load failure midway through the build step).
func (p *Programs) Release() {
	if p == nil {
		return
	}
	for _, prog := range []*Program{p.GEMM, p.Attention, p.LayerNorm, p.Activation, p.RoPE, p.Embedding, p.Vision} {
		prog.Release()
	}
}

// roundUp rounds n up to the next multiple of m.
func roundUp(n, m int) int {
	if n%m == 0 {
		return n
	}
	return (n/m + 1) * m
}

// ceilDiv computes ceil(n/m) for positive n, m.
func ceilDiv(n, m int) int {
	return (n + m - 1) / m
}

// enqueue1D binds args and enqueues a 1-D range with the given local size
// (driver-chosen when local is 0), returning the completion event.
func enqueue1D(queue *cl.CommandQueue, k *cl.Kernel, global int, local int, args ...interface{}) (*cl.Event, error) {
	if err := k.SetArgs(args...); err != nil {
		return nil, fmt.Errorf("%w: set args: %v", ErrDispatch, err)
	}
	var localSizes []int
	if local > 0 {
		localSizes = []int{local}
	}
	ev, err := queue.EnqueueNDRangeKernel(k, nil, []int{global}, localSizes, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: enqueue: %v", ErrDispatch, err)
	}
	return ev, nil
}

// enqueue2D is the 2-D analogue of enqueue1D.
func enqueue2D(queue *cl.CommandQueue, k *cl.Kernel, globalX, globalY, localX, localY int, args ...interface{}) (*cl.Event, error) {
	if err := k.SetArgs(args...); err != nil {
		return nil, fmt.Errorf("%w: set args: %v", ErrDispatch, err)
	}
	var localSizes []int
	if localX > 0 && localY > 0 {
		localSizes = []int{localX, localY}
	}
	ev, err := queue.EnqueueNDRangeKernel(k, nil, []int{globalX, globalY}, localSizes, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: enqueue: %v", ErrDispatch, err)
	}
	return ev, nil
}

// enqueue3D is the 3-D analogue of enqueue1D.
func enqueue3D(queue *cl.CommandQueue, k *cl.Kernel, gx, gy, gz, lx, ly, lz int, args ...interface{}) (*cl.Event, error) {
	if err := k.SetArgs(args...); err != nil {
		return nil, fmt.Errorf("%w: set args: %v", ErrDispatch, err)
	}
	var localSizes []int
	if lx > 0 && ly > 0 && lz > 0 {
		localSizes = []int{lx, ly, lz}
	}
	ev, err := queue.EnqueueNDRangeKernel(k, nil, []int{gx, gy, gz}, localSizes, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: enqueue: %v", ErrDispatch, err)
	}
	return ev, nil
}
