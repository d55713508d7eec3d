package model

import (
	"fmt"
	"math"

	"github.com/vlmcl/moondream/container"
	"github.com/vlmcl/moondream/gpu"
)

// visionNamePrefixes and visionLayerTemplates mirror weights.go's
// dual-convention lookup for the vision tower: SigLIP/CLIP-style
// HuggingFace names first, then the gguf clip.cpp convention ("v.*")
// multimodal exporters also ship.
var visionNamePrefixes = []string{"vision_model.", "vision_tower.vision_model.", "v."}

var visionLayerTemplates = []string{
	"vision_model.encoder.layers.%d.%s",
	"vision_tower.vision_model.encoder.layers.%d.%s",
	"v.blk.%d.%s",
}

var visionSuffixAlternatives = map[string][]string{
	"q_proj": {"self_attn.q_proj.weight", "attn_q.weight"},
	"k_proj": {"self_attn.k_proj.weight", "attn_k.weight"},
	"v_proj": {"self_attn.v_proj.weight", "attn_v.weight"},
	"o_proj": {"self_attn.out_proj.weight", "attn_out.weight"},
	"fc1":    {"mlp.fc1.weight", "ffn_up.weight"},
	"fc2":    {"mlp.fc2.weight", "ffn_down.weight"},
	"norm1":  {"layer_norm1.weight", "ln1.weight"},
	"norm2":  {"layer_norm2.weight", "ln2.weight"},
}

func findVisionGlobal(c *container.Container, names ...string) *container.TensorInfo {
	for _, prefix := range visionNamePrefixes {
		for _, name := range names {
			if info := c.FindTensor(prefix + name); info != nil {
				return info
			}
		}
	}
	return nil
}

func findVisionLayer(c *container.Container, i int, slot string) *container.TensorInfo {
	for _, suffix := range visionSuffixAlternatives[slot] {
		for _, tmpl := range visionLayerTemplates {
			if info := c.FindTensor(fmt.Sprintf(tmpl, i, suffix)); info != nil {
				return info
			}
		}
	}
	return nil
}

// VisionLayerWeights is one SigLIP-style ViT block: pre-norm MHSA and a
// GELU MLP, non-causal (every patch attends every patch).
type VisionLayerWeights struct {
	QProj, KProj, VProj, OProj *Projection
	FC1, FC2                   *Projection
	Norm1, Norm2               *gpu.Buffer
}

// VisionWeights is the optional vision-encoder prefix stage's bound
// weights: patch embedding, learned position embedding, N ViT blocks, a
// final norm, and the projector into the language model's embedding
// space. A Model with no vision weights (the common case — most prompts
// carry no image) simply never calls EncodeImage.
type VisionWeights struct {
	PatchEmbed *Projection
	PosEmbed   *gpu.Buffer
	Layers     []VisionLayerWeights
	FinalNorm  *gpu.Buffer
	Projector  *Projection
}

// LoadVisionWeights resolves the vision tower's tensors from the
// container. It returns (nil, nil) — not an error — when the patch
// embedding or projector tensor is absent: a container with no vision
// tensors at all is simply a text-only model, not a load failure.
func LoadVisionWeights(d *gpu.Device, c *container.Container, cfg Config) (*VisionWeights, error) {
	patchInfo := findVisionGlobal(c, "embeddings.patch_embedding.weight", "patch_embd.weight")
	projInfo := findVisionGlobal(c, "projector.weight", "mm.projector.weight", "mm_proj.weight")
	if patchInfo == nil || projInfo == nil {
		return nil, nil
	}

	// The patch-embedding and projector kernels sample image2d_t weights
	// directly and have no buffer variant, so both must land on the
	// image path.
	patchEmbed := loadProjection(d, c, patchInfo)
	if patchEmbed == nil || patchEmbed.Image == nil {
		return nil, fmt.Errorf("model: vision patch-embedding tensor %q could not be uploaded as an image", patchInfo.Name)
	}
	projector := loadProjection(d, c, projInfo)
	if projector == nil || projector.Image == nil {
		return nil, fmt.Errorf("model: vision projector tensor %q could not be uploaded as an image", projInfo.Name)
	}

	posInfo := findVisionGlobal(c, "embeddings.position_embedding.weight", "position_embd.weight")
	posEmbed := loadNormBuffer(d, c, posInfo)
	if posEmbed == nil {
		return nil, fmt.Errorf("model: vision position-embedding tensor not found, though patch embedding is present")
	}

	finalNormInfo := findVisionGlobal(c, "post_layernorm.weight", "post_ln.weight")
	finalNorm := loadNormBuffer(d, c, finalNormInfo)

	layers := make([]VisionLayerWeights, cfg.VisionLayers)
	for i := 0; i < cfg.VisionLayers; i++ {
		layers[i] = VisionLayerWeights{
			QProj: loadProjection(d, c, findVisionLayer(c, i, "q_proj")),
			KProj: loadProjection(d, c, findVisionLayer(c, i, "k_proj")),
			VProj: loadProjection(d, c, findVisionLayer(c, i, "v_proj")),
			OProj: loadProjection(d, c, findVisionLayer(c, i, "o_proj")),
			FC1:   loadProjection(d, c, findVisionLayer(c, i, "fc1")),
			FC2:   loadProjection(d, c, findVisionLayer(c, i, "fc2")),
			Norm1: loadNormBuffer(d, c, findVisionLayer(c, i, "norm1")),
			Norm2: loadNormBuffer(d, c, findVisionLayer(c, i, "norm2")),
		}
	}

	return &VisionWeights{
		PatchEmbed: patchEmbed,
		PosEmbed:   posEmbed,
		Layers:     layers,
		FinalNorm:  finalNorm,
		Projector:  projector,
	}, nil
}

// Release frees every device resource the vision weights own.
func (w *VisionWeights) Release() {
	if w == nil {
		return
	}
	w.PatchEmbed.Release()
	w.PosEmbed.Release()
	w.FinalNorm.Release()
	w.Projector.Release()
	for _, l := range w.Layers {
		for _, p := range []*Projection{l.QProj, l.KProj, l.VProj, l.OProj, l.FC1, l.FC2} {
			p.Release()
		}
		l.Norm1.Release()
		l.Norm2.Release()
	}
}

// EncodeImage runs the SigLIP-style encoder over a pre-decoded planar
// float tensor (file decoding is the caller's job)
// and returns a buffer of cfg.VisionPatches rows of cfg.ProjectionDim
// half-floats, ready to prepend to a text prefill via ForwardWithImage.
// pixels is host memory holding channels-planar float32 data for a square
// 3-channel image of side cfg.VisionImageSide (length side*side*3);
// EncodeImage uploads it itself and rejects any other length.
func (m *Model) EncodeImage(pixels []float32) (*gpu.Buffer, error) {
	if m.vision == nil {
		return nil, fmt.Errorf("model: container has no vision tensors, image input is unsupported")
	}
	cfg := m.cfg
	side := cfg.VisionImageSide
	channels := 3
	if len(pixels) != side*side*channels {
		return nil, fmt.Errorf("model: image pixel count %d != %d*%d*%d", len(pixels), side, side, channels)
	}

	raw := make([]byte, len(pixels)*4)
	for i, v := range pixels {
		bits := math.Float32bits(v)
		raw[4*i] = byte(bits)
		raw[4*i+1] = byte(bits >> 8)
		raw[4*i+2] = byte(bits >> 16)
		raw[4*i+3] = byte(bits >> 24)
	}
	pixelBuf, err := m.device.CreateBuffer(len(raw), gpu.ReadOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("model: upload pixels: %w", err)
	}
	defer pixelBuf.Release()

	numPatches := cfg.VisionPatches
	hidden := cfg.VisionHiddenDim
	heads := cfg.VisionHeads
	headDim := hidden / heads

	alloc := func() (*gpu.Buffer, error) { return m.device.CreateBuffer(numPatches*hidden*2, gpu.ReadWrite, nil) }
	a, err := alloc()
	if err != nil {
		return nil, err
	}
	defer a.Release()
	b, err := alloc()
	if err != nil {
		return nil, err
	}
	defer b.Release()
	q, err := alloc()
	if err != nil {
		return nil, err
	}
	defer q.Release()
	k, err := alloc()
	if err != nil {
		return nil, err
	}
	defer k.Release()
	v, err := alloc()
	if err != nil {
		return nil, err
	}
	defer v.Release()
	attn, err := alloc()
	if err != nil {
		return nil, err
	}
	defer attn.Release()

	if _, err := m.device.PatchEmbed(m.programs, pixelBuf, m.vision.PatchEmbed.Image, m.vision.PosEmbed, a, side, cfg.VisionPatchSize, hidden, channels); err != nil {
		return nil, fmt.Errorf("model: patch embed: %w", err)
	}

	for i := range m.vision.Layers {
		layer := &m.vision.Layers[i]
		normed, err := m.normOrPass(a, layer.Norm1, b, numPatches, hidden)
		if err != nil {
			return nil, fmt.Errorf("model: vision layer %d norm1: %w", i, err)
		}
		if err := m.project(normed, layer.QProj, q, numPatches, hidden, hidden, false); err != nil {
			return nil, fmt.Errorf("model: vision layer %d q_proj: %w", i, err)
		}
		if err := m.project(normed, layer.KProj, k, numPatches, hidden, hidden, false); err != nil {
			return nil, fmt.Errorf("model: vision layer %d k_proj: %w", i, err)
		}
		if err := m.project(normed, layer.VProj, v, numPatches, hidden, hidden, false); err != nil {
			return nil, fmt.Errorf("model: vision layer %d v_proj: %w", i, err)
		}
		if _, err := m.device.VisionAttention(m.programs, q, k, v, attn, numPatches, heads, headDim); err != nil {
			return nil, fmt.Errorf("model: vision layer %d attention: %w", i, err)
		}
		if err := m.project(attn, layer.OProj, b, numPatches, hidden, hidden, false); err != nil {
			return nil, fmt.Errorf("model: vision layer %d o_proj: %w", i, err)
		}
		if _, err := m.device.VectorAdd(m.programs, a, b, a, numPatches*hidden); err != nil {
			return nil, fmt.Errorf("model: vision layer %d residual 1: %w", i, err)
		}

		normed2, err := m.normOrPass(a, layer.Norm2, b, numPatches, hidden)
		if err != nil {
			return nil, fmt.Errorf("model: vision layer %d norm2: %w", i, err)
		}
		if layer.FC1 != nil && layer.FC2 != nil {
			// The MLP width comes from the weight itself; SigLIP's
			// intermediate is not a clean multiple of hidden.
			inter := layer.FC1.Cols
			mlpHidden, err := m.device.CreateBuffer(numPatches*inter*2, gpu.ReadWrite, nil)
			if err != nil {
				return nil, fmt.Errorf("model: vision layer %d mlp scratch: %w", i, err)
			}
			if err := m.project(normed2, layer.FC1, mlpHidden, numPatches, hidden, inter, false); err != nil {
				mlpHidden.Release()
				return nil, fmt.Errorf("model: vision layer %d fc1: %w", i, err)
			}
			if _, err := m.device.GELU(m.programs, mlpHidden, mlpHidden, numPatches*inter); err != nil {
				mlpHidden.Release()
				return nil, fmt.Errorf("model: vision layer %d gelu: %w", i, err)
			}
			if err := m.project(mlpHidden, layer.FC2, b, numPatches, inter, hidden, false); err != nil {
				mlpHidden.Release()
				return nil, fmt.Errorf("model: vision layer %d fc2: %w", i, err)
			}
			mlpHidden.Release()
			if _, err := m.device.VectorAdd(m.programs, a, b, a, numPatches*hidden); err != nil {
				return nil, fmt.Errorf("model: vision layer %d residual 2: %w", i, err)
			}
		}
	}

	final, err := m.normOrPass(a, m.vision.FinalNorm, b, numPatches, hidden)
	if err != nil {
		return nil, fmt.Errorf("model: vision final norm: %w", err)
	}

	out, err := m.device.CreateBuffer(numPatches*cfg.ProjectionDim*2, gpu.ReadWrite, nil)
	if err != nil {
		return nil, fmt.Errorf("model: allocate projected embeddings: %w", err)
	}
	if _, err := m.device.VisionProjector(m.programs, final, m.vision.Projector.Image, out, numPatches, hidden, cfg.ProjectionDim); err != nil {
		out.Release()
		return nil, fmt.Errorf("model: vision projector: %w", err)
	}

	if err := m.device.Finish(); err != nil {
		out.Release()
		return nil, fmt.Errorf("model: finish: %w", err)
	}
	return out, nil
}
