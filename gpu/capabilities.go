package gpu

import (
	"log/slog"
	"strings"

	"github.com/jgillich/go-opencl/cl"
)

// defaultSubgroupWidth is the typical wave width on the Adreno-class target;
// queryCapabilities always reports it, as the binding has no subgroup query.
const defaultSubgroupWidth = 64

// Capabilities is a frozen, consumer-facing capability record. Any field
// the driver doesn't report is left at its zero value; callers must treat
// an absent capability as "assume not available" rather than probing again.
type Capabilities struct {
	ComputeUnits     int
	MaxWorkGroupSize int
	LocalMemBytes    int64
	SupportsHalf     bool
	SubgroupWidth    int
	SupportsImages   bool
	Image2DMaxWidth  int
	Image2DMaxHeight int

	NativeVectorWidthHalf  int
	MaxConstantBufferBytes int64

	// Vendor extension flags. Absent means "not available"; the core must
	// function correctly with none of these present.
	HasQcomSubgroupShuffle     bool
	HasQcomOnchipGlobalMemory  bool
	HasQcomRecordableQueues    bool
	HasQcomPerfHint            bool
	HasQcomDotProduct8         bool
	HasQcomAndroidNativeBuffer bool
	HasIntegerDotProduct       bool

	Name   string
	Vendor string
}

func queryCapabilities(d *cl.Device) Capabilities {
	ext := d.Extensions()

	c := Capabilities{
		ComputeUnits:           d.MaxComputeUnits(),
		MaxWorkGroupSize:       d.MaxWorkGroupSize(),
		LocalMemBytes:          d.LocalMemSize(),
		SupportsHalf:           hasExt(ext, "cl_khr_fp16"),
		SupportsImages:         d.ImageSupport(),
		Image2DMaxWidth:        d.Image2DMaxWidth(),
		Image2DMaxHeight:       d.Image2DMaxHeight(),
		NativeVectorWidthHalf:  d.NativeVectorWidthHalf(),
		MaxConstantBufferBytes: d.MaxConstantBufferSize(),

		HasQcomSubgroupShuffle:     hasExt(ext, "cl_qcom_subgroup_shuffle"),
		HasQcomOnchipGlobalMemory:  hasExt(ext, "cl_qcom_onchip_global_memory"),
		HasQcomRecordableQueues:    hasExt(ext, "cl_qcom_recordable_queues"),
		HasQcomPerfHint:            hasExt(ext, "cl_qcom_perf_hint"),
		HasQcomDotProduct8:         hasExt(ext, "cl_qcom_dot_product8"),
		HasQcomAndroidNativeBuffer: hasExt(ext, "cl_qcom_android_native_buffer_host_ptr"),
		HasIntegerDotProduct:       hasExt(ext, "cl_khr_integer_dot_product"),

		Name:   d.Name(),
		Vendor: d.Vendor(),
	}

	// The binding exposes no clGetKernelSubGroupInfo surface, so the
	// standard subgroup query is never available here; the typical
	// Adreno wave width stands in for it.
	c.SubgroupWidth = defaultSubgroupWidth

	return c
}

func hasExt(extensions, name string) bool {
	return strings.Contains(extensions, name)
}

// LogFields renders the capability record as structured log attributes,
// used for the startup device log line.
func (c Capabilities) LogFields() []slog.Attr {
	return []slog.Attr{
		slog.String("name", c.Name),
		slog.String("vendor", c.Vendor),
		slog.Int("compute_units", c.ComputeUnits),
		slog.Int("max_work_group_size", c.MaxWorkGroupSize),
		slog.Int64("local_mem_bytes", c.LocalMemBytes),
		slog.Bool("fp16", c.SupportsHalf),
		slog.Int("subgroup_width", c.SubgroupWidth),
		slog.Bool("images", c.SupportsImages),
	}
}
