package gpu

import (
	"fmt"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// AccessFlags mirrors the read-only/write-only/read-write/copy-host-ptr
// access combinations a DeviceBuffer can be created with.
type AccessFlags cl.MemFlag

const (
	ReadWrite AccessFlags = AccessFlags(cl.MemReadWrite)
	ReadOnly  AccessFlags = AccessFlags(cl.MemReadOnly)
	WriteOnly AccessFlags = AccessFlags(cl.MemWriteOnly)
)

// Buffer is a linear byte region in device memory.
type Buffer struct {
	device *Device
	mem    *cl.MemObject
	size   int
	flags  AccessFlags
}

// CreateBuffer allocates size bytes with the given access flags, optionally
// copying hostPtr in at creation time (pass nil to leave it uninitialized).
func (d *Device) CreateBuffer(size int, flags AccessFlags, hostPtr []byte) (*Buffer, error) {
	var mem *cl.MemObject
	var err error
	if hostPtr != nil {
		mem, err = d.context.CreateBufferUnsafe(cl.MemFlag(flags)|cl.MemCopyHostPtr, size, unsafe.Pointer(&hostPtr[0]))
	} else {
		mem, err = d.context.CreateEmptyBuffer(cl.MemFlag(flags), size)
	}
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer (%d bytes): %w", size, err)
	}
	return &Buffer{device: d, mem: mem, size: size, flags: flags}, nil
}

// Size reports the buffer's length in bytes.
func (b *Buffer) Size() int { return b.size }

// WriteBlocking copies data into the buffer at byteOffset and blocks until
// the write completes — used for the vocabulary copy-in and other
// host-to-device transfers that must be visible before the next dispatch.
func (b *Buffer) WriteBlocking(byteOffset int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := b.device.queue.EnqueueWriteBuffer(b.mem, true, byteOffset, len(data), unsafe.Pointer(&data[0]), nil)
	if err != nil {
		return fmt.Errorf("gpu: write buffer: %w", err)
	}
	return nil
}

// ReadBlocking reads byteLength bytes starting at byteOffset into a
// freshly allocated slice, blocking until the transfer completes —
// used for the logits read-back at the end of a forward pass.
func (b *Buffer) ReadBlocking(byteOffset, byteLength int) ([]byte, error) {
	out := make([]byte, byteLength)
	if byteLength == 0 {
		return out, nil
	}
	_, err := b.device.queue.EnqueueReadBuffer(b.mem, true, byteOffset, byteLength, unsafe.Pointer(&out[0]), nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: read buffer: %w", err)
	}
	return out, nil
}

// Release frees the underlying device memory object.
func (b *Buffer) Release() {
	if b != nil && b.mem != nil {
		b.mem.Release()
	}
}

// CopyBuffer enqueues a device-to-device copy of size bytes from src (at
// srcOffset) to dst (at dstOffset), on the owning device's in-order queue.
// Used by the forward pass for the identity pass-through a degraded
// (weight-missing) Q/K/V/O projection requires.
func (d *Device) CopyBuffer(src *Buffer, srcOffset int, dst *Buffer, dstOffset int, size int) (*cl.Event, error) {
	ev, err := d.queue.EnqueueCopyBuffer(src.mem, dst.mem, srcOffset, dstOffset, size, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: copy buffer: %v", ErrDispatch, err)
	}
	return ev, nil
}
