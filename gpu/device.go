// Package gpu is the device and dispatch layer: platform/device discovery,
// context and profiled command-queue creation, kernel program builds, the
// typed buffer/image allocators, and the operator dispatch wrappers used by
// the model driver. It is a thin layer over github.com/jgillich/go-opencl/cl
// and never itself runs math on the host.
package gpu

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jgillich/go-opencl/cl"
)

// Device represents one compute context: a platform/device pair, a context,
// a single in-order profiled command queue, and a frozen capability record.
// Created once at startup; released when the process tears down.
type Device struct {
	platform *cl.Platform
	device   *cl.Device
	context  *cl.Context
	queue    *cl.CommandQueue

	caps Capabilities
}

// preferredVendors are matched case-insensitively as substrings of the
// device vendor/name string; the first GPU matching one of these wins,
// otherwise the first enumerable GPU is used.
var preferredVendors = []string{"adreno", "qualcomm"}

// Open discovers a GPU-class device, preferring an Adreno/Qualcomm part,
// and creates a context plus one profiled in-order command queue.
func Open() (*Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil || len(platforms) == 0 {
		return nil, fmt.Errorf("%w: enumerate platforms: %v", ErrNoDevice, err)
	}

	var candidates []*cl.Device
	for _, p := range platforms {
		devices, err := p.GetDevices(cl.DeviceTypeGPU)
		if err != nil {
			continue
		}
		candidates = append(candidates, devices...)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no GPU devices enumerated", ErrNoDevice)
	}

	chosen := candidates[0]
search:
	for _, d := range candidates {
		name := strings.ToLower(d.Name() + " " + d.Vendor())
		for _, v := range preferredVendors {
			if strings.Contains(name, v) {
				chosen = d
				break search
			}
		}
	}

	slog.Debug("opencl device selected", "name", chosen.Name(), "vendor", chosen.Vendor())

	ctx, err := createContext(chosen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextFailed, err)
	}

	queue, err := ctx.CreateCommandQueue(chosen, cl.CommandQueueProfilingEnable)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("%w: create command queue: %v", ErrContextFailed, err)
	}

	dev := &Device{device: chosen, context: ctx, queue: queue}
	dev.caps = queryCapabilities(chosen)
	return dev, nil
}

// createContext builds a plain context for the device. Both branches make
// the same CreateContext call: no vendor performance-hint properties are
// attached, even when the device exposes cl_qcom_perf_hint.
func createContext(d *cl.Device) (*cl.Context, error) {
	if hasExtension(d, "cl_qcom_perf_hint") {
		if ctx, err := cl.CreateContext([]*cl.Device{d}); err == nil {
			return ctx, nil
		}
	}
	return cl.CreateContext([]*cl.Device{d})
}

// Close releases the command queue and context. The device id itself is
// not retained (no driver reference-count increment on our side).
func (d *Device) Close() error {
	if d.queue != nil {
		d.queue.Release()
	}
	if d.context != nil {
		d.context.Release()
	}
	return nil
}

// Capabilities returns the frozen capability record queried at Open time.
func (d *Device) Capabilities() Capabilities { return d.caps }

// Finish blocks until every dispatch enqueued so far on the device's single
// in-order queue has completed. The forward pass calls this once at the end
// of each request; host reads of device buffers must either go through this
// or use a blocking buffer read.
func (d *Device) Finish() error {
	if err := d.queue.Finish(); err != nil {
		return fmt.Errorf("gpu: queue finish: %w", err)
	}
	return nil
}

func hasExtension(d *cl.Device, name string) bool {
	return strings.Contains(d.Extensions(), name)
}
