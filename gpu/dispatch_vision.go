package gpu

import (
	"math"

	"github.com/jgillich/go-opencl/cl"
)

// PatchEmbed runs the SigLIP-style patch embedding: it slices the planar
// pixel tensor into non-overlapping patchSize×patchSize patches, flattens
// and projects each through patchProj, and adds the learned position
// embedding, writing numPatches rows of hiddenDim half-floats into out.
// One work group per patch, the same row-per-group convention
// the LM's rms_norm/softmax kernels use.
func (d *Device) PatchEmbed(p *Programs, pixels *Buffer, patchProj *WeightImage, posEmbed, out *Buffer, imageSide, patchSize, hiddenDim, channels int) (*cl.Event, error) {
	kernel, err := p.Vision.kernel("patch_embed")
	if err != nil {
		return nil, err
	}
	patchesPerSide := imageSide / patchSize
	numPatches := patchesPerSide * patchesPerSide
	global := numPatches * 256
	return enqueue1D(d.queue, kernel, global, 256,
		pixels.mem, patchProj.img, posEmbed.mem, out.mem,
		int32(imageSide), int32(patchSize), int32(hiddenDim), int32(channels))
}

// VisionAttention runs non-causal multi-head self-attention over numPatches
// positions — every position attends every other position, unlike the
// causal LM attention kernels. One work group per (position, head) pair,
// mirroring attention_prefill's dispatch shape minus the causal mask.
func (d *Device) VisionAttention(p *Programs, q, k, v, out *Buffer, numPatches, heads, headDim int) (*cl.Event, error) {
	kernel, err := p.Vision.kernel("vision_attention")
	if err != nil {
		return nil, err
	}
	scale := float32(1.0 / math.Sqrt(float64(headDim)))
	global := numPatches * heads * 256
	return enqueue1D(d.queue, kernel, global, 256,
		q.mem, k.mem, v.mem, out.mem, int32(numPatches), int32(heads), int32(headDim), scale)
}

// VisionProjector maps the vision encoder's final hidden state (numPatches
// rows of visionHiddenDim) into the language model's embedding space
// (numPatches rows of lmHiddenDim) through a single linear projection.
func (d *Device) VisionProjector(p *Programs, in *Buffer, proj *WeightImage, out *Buffer, numPatches, visionHiddenDim, lmHiddenDim int) (*cl.Event, error) {
	kernel, err := p.Vision.kernel("vision_projector")
	if err != nil {
		return nil, err
	}
	gx := roundUp(numPatches, 16)
	gy := roundUp(ceilDiv(lmHiddenDim, 4), 4)
	return enqueue2D(d.queue, kernel, gx, gy, 16, 4, in.mem, proj.img, out.mem, int32(numPatches), int32(visionHiddenDim), int32(lmHiddenDim))
}
