package gpu

import (
	"fmt"
	"os"

	"github.com/jgillich/go-opencl/cl"
)

// canonicalBuildOptions targets the OpenCL C language version this engine's
// kernels are written against, and allows the fast-math and fused
// multiply-add transformations the dispatch layer's numeric-stability
// contract does not forbid (softmax and RMSNorm accumulate their row
// reductions in float inside the kernels, so these relaxations are safe for
// the per-element math the kernels perform).
const canonicalBuildOptions = "-cl-std=CL2.0 -cl-fast-relaxed-math -cl-mad-enable"

// Program is an opaque compiled program bound to the device that built it.
// Immutable after Build; release order relative to kernels created from it
// is the caller's concern.
type Program struct {
	device *Device
	prog   *cl.Program
}

// BuildFromSource compiles source with the canonical option set plus any
// caller-supplied extra options (e.g. envconfig.ExtraBuildOptions()).
func (d *Device) BuildFromSource(source string, extraOptions ...string) (*Program, error) {
	prog, err := d.context.CreateProgramWithSource([]string{source})
	if err != nil {
		return nil, fmt.Errorf("%w: create program: %v", ErrBuildFailed, err)
	}

	opts := canonicalBuildOptions
	for _, o := range extraOptions {
		opts += " " + o
	}

	// On a compile error BuildProgram returns a BuildError carrying the
	// driver's multi-line build log verbatim.
	if err := prog.BuildProgram([]*cl.Device{d.device}, opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	return &Program{device: d, prog: prog}, nil
}

// BuildFromFile reads a kernel source file and forwards to BuildFromSource.
func (d *Device) BuildFromFile(path string, extraOptions ...string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrBuildFailed, path, err)
	}
	return d.BuildFromSource(string(src), extraOptions...)
}

// Release frees the underlying compiled program.
func (p *Program) Release() {
	if p != nil && p.prog != nil {
		p.prog.Release()
	}
}

// kernel looks up a named kernel in the program; dispatch wrappers call
// this once per invocation (kernel objects are cheap and this keeps the
// dispatch layer stateless with respect to which kernels it has created).
func (p *Program) kernel(name string) (*cl.Kernel, error) {
	k, err := p.prog.CreateKernel(name)
	if err != nil {
		return nil, fmt.Errorf("%w: kernel %q: %v", ErrDispatch, name, err)
	}
	return k, nil
}
