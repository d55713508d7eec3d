package model

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/vlmcl/moondream/container"
	"github.com/vlmcl/moondream/gpu"
	"github.com/x448/float16"
)

// namePrefixes are tried in order against a raw weight name when resolving
// a global (non-per-layer) tensor.
var namePrefixes = []string{"", "model.", "transformer."}

// layerNameTemplates are tried in order to resolve a per-layer tensor at
// index i with logical suffix suffix.
var layerNameTemplates = []string{
	"model.layers.%d.%s",
	"blk.%d.%s",
	"transformer.h.%d.%s",
}

// suffixAlternatives maps a logical per-layer weight slot to the list of
// suffix spellings different exporters use for it.
var suffixAlternatives = map[string][]string{
	"q_proj":     {"self_attn.q_proj.weight", "attn.q_proj.weight", "attn_q.weight"},
	"k_proj":     {"self_attn.k_proj.weight", "attn.k_proj.weight", "attn_k.weight"},
	"v_proj":     {"self_attn.v_proj.weight", "attn.v_proj.weight", "attn_v.weight"},
	"o_proj":     {"self_attn.o_proj.weight", "attn.o_proj.weight", "attn_output.weight"},
	"gate_proj":  {"mlp.gate_proj.weight", "ffn_gate.weight"},
	"up_proj":    {"mlp.up_proj.weight", "ffn_up.weight"},
	"down_proj":  {"mlp.down_proj.weight", "ffn_down.weight"},
	"input_norm": {"input_layernorm.weight", "attn_norm.weight"},
	"post_norm":  {"post_attention_layernorm.weight", "ffn_norm.weight"},
}

// globalNames maps a logical global weight slot to its raw-name
// alternatives, tried before the model./transformer. prefix sweep.
var globalNames = map[string][]string{
	"embedding":  {"token_embd.weight", "embed_tokens.weight", "tok_embeddings.weight"},
	"final_norm": {"output_norm.weight", "norm.weight", "model.norm.weight"},
	"lm_head":    {"output.weight", "lm_head.weight"},
}

// resolveGlobal tries every alternative name (each under every prefix) and
// returns the first tensor found.
func resolveGlobal(c *container.Container, slot string) *container.TensorInfo {
	for _, alt := range globalNames[slot] {
		for _, prefix := range namePrefixes {
			if info := c.FindTensor(prefix + alt); info != nil {
				return info
			}
		}
	}
	return nil
}

// resolveLayer tries every suffix alternative under every layer-name
// template for layer index i.
func resolveLayer(c *container.Container, i int, slot string) *container.TensorInfo {
	for _, suffix := range suffixAlternatives[slot] {
		for _, tmpl := range layerNameTemplates {
			if info := c.FindTensor(fmt.Sprintf(tmpl, i, suffix)); info != nil {
				return info
			}
		}
	}
	return nil
}

// Projection is one bound 2-D weight of shape [Rows, Cols] (input dim ×
// output dim). Image is the sampled-texture fast path; Buf is the plain
// half-buffer degraded path taken when the image upload is unavailable.
// Exactly one of the two is non-nil.
type Projection struct {
	Image *gpu.WeightImage
	Buf   *gpu.Buffer
	Rows  int
	Cols  int
}

// Release frees whichever device resource the projection holds.
func (p *Projection) Release() {
	if p == nil {
		return
	}
	p.Image.Release()
	p.Buf.Release()
}

// LayerWeights holds one transformer layer's bound projections and norm
// vectors. A nil field means that slot was not found at load time; the
// forward pass treats a nil projection as an identity pass-through
// (Q/K/V/O) or a zeroed contribution (gate/up/down).
type LayerWeights struct {
	QProj, KProj, VProj, OProj *Projection
	GateProj, UpProj, DownProj *Projection
	InputNorm, PostNorm        *gpu.Buffer
}

// Complete reports whether all nine weight slots are bound.
func (l *LayerWeights) Complete() bool {
	return l.QProj != nil && l.KProj != nil && l.VProj != nil && l.OProj != nil &&
		l.GateProj != nil && l.UpProj != nil && l.DownProj != nil &&
		l.InputNorm != nil && l.PostNorm != nil
}

// Weights is the fully bound set of device-resident weights for a model:
// the embedding table, per-layer weights, the final norm, the LM head, and
// the RoPE tables.
type Weights struct {
	Embedding *gpu.Buffer
	Layers    []LayerWeights
	FinalNorm *gpu.Buffer
	LMHead    *Projection
	RoPE      *gpu.RoPETables
}

// loadRaw reads an F16 tensor's bytes from the container as a half-float
// slice for upload.
func loadRaw(c *container.Container, info *container.TensorInfo) []float16.Float16 {
	raw := c.TensorData(info)
	out := make([]float16.Float16, len(raw)/2)
	for i := range out {
		out[i] = float16.Float16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	return out
}

// narrowF32 narrows a little-endian F32 tensor payload to half.
func narrowF32(raw []byte) []float16.Float16 {
	out := make([]float16.Float16, len(raw)/4)
	for i := range out {
		bits := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 | uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
		out[i] = float16.Fromfloat32(math.Float32frombits(bits))
	}
	return out
}

func halfBytes(data []float16.Float16) []byte {
	out := make([]byte, len(data)*2)
	for i, v := range data {
		bits := uint16(v)
		out[2*i] = byte(bits)
		out[2*i+1] = byte(bits >> 8)
	}
	return out
}

// loadProjection binds a 2-D weight tensor, preferring the sampled-image
// path and falling back to a plain half buffer when the image upload is
// unavailable (device without image support, or a shape the driver
// rejects). F32 tensors are narrowed to half on the host first. Quantized
// and integer element types have no kernel on either path and leave the
// slot unbound.
func loadProjection(d *gpu.Device, c *container.Container, info *container.TensorInfo) *Projection {
	if info == nil {
		return nil
	}

	var data []float16.Float16
	switch info.ElementType {
	case container.F16:
		data = loadRaw(c, info)
	case container.F32:
		data = narrowF32(c.TensorData(info))
	default:
		slog.Warn("projection has unsupported element type, slot left unbound",
			"tensor", info.Name, "type", uint32(info.ElementType))
		return nil
	}
	rows := int(info.Dims[0])
	cols := int(info.Dims[1])

	if d.Capabilities().SupportsImages {
		img, err := d.CreateWeightImage(rows, cols, data)
		if err == nil {
			return &Projection{Image: img, Rows: rows, Cols: cols}
		}
		slog.Warn("weight image upload failed, falling back to buffer", "tensor", info.Name, "err", err)
	}

	buf, err := d.CreateBuffer(len(data)*2, gpu.ReadOnly, halfBytes(data))
	if err != nil {
		slog.Warn("projection buffer upload failed, slot left unbound", "tensor", info.Name, "err", err)
		return nil
	}
	return &Projection{Buf: buf, Rows: rows, Cols: cols}
}

func loadNormBuffer(d *gpu.Device, c *container.Container, info *container.TensorInfo) *gpu.Buffer {
	if info == nil {
		return nil
	}
	raw := c.TensorData(info)
	buf, err := d.CreateBuffer(len(raw), gpu.ReadOnly, raw)
	if err != nil {
		slog.Warn("norm buffer upload failed", "tensor", info.Name, "err", err)
		return nil
	}
	return buf
}

// LoadWeights resolves, uploads, and binds every weight named by cfg's
// architecture against the container's tensor table. Missing embedding or
// LM head tensors are fatal; missing per-layer weights are load warnings
// and leave that slot unbound (degraded forward pass).
func LoadWeights(d *gpu.Device, c *container.Container, cfg Config) (*Weights, error) {
	embInfo := resolveGlobal(c, "embedding")
	if embInfo == nil {
		return nil, fmt.Errorf("model: embedding table not found in container")
	}
	embData := c.TensorData(embInfo)
	embBuf, err := d.CreateBuffer(len(embData), gpu.ReadOnly, embData)
	if err != nil {
		return nil, fmt.Errorf("model: upload embedding table: %w", err)
	}

	lmHeadInfo := resolveGlobal(c, "lm_head")
	if lmHeadInfo == nil {
		return nil, fmt.Errorf("model: language-model head not found in container")
	}
	lmHead := loadProjection(d, c, lmHeadInfo)
	if lmHead == nil {
		return nil, fmt.Errorf("model: language-model head %q has unsupported element type", lmHeadInfo.Name)
	}

	finalNormInfo := resolveGlobal(c, "final_norm")
	finalNorm := loadNormBuffer(d, c, finalNormInfo)
	if finalNorm == nil {
		return nil, fmt.Errorf("model: final norm weight not found in container")
	}

	layers := make([]LayerWeights, cfg.Layers)
	for i := 0; i < cfg.Layers; i++ {
		lw := LayerWeights{
			QProj:     loadProjection(d, c, resolveLayer(c, i, "q_proj")),
			KProj:     loadProjection(d, c, resolveLayer(c, i, "k_proj")),
			VProj:     loadProjection(d, c, resolveLayer(c, i, "v_proj")),
			OProj:     loadProjection(d, c, resolveLayer(c, i, "o_proj")),
			GateProj:  loadProjection(d, c, resolveLayer(c, i, "gate_proj")),
			UpProj:    loadProjection(d, c, resolveLayer(c, i, "up_proj")),
			DownProj:  loadProjection(d, c, resolveLayer(c, i, "down_proj")),
			InputNorm: loadNormBuffer(d, c, resolveLayer(c, i, "input_norm")),
			PostNorm:  loadNormBuffer(d, c, resolveLayer(c, i, "post_norm")),
		}
		if !lw.Complete() {
			slog.Warn("layer has unbound weight slots, forward pass will run degraded", "layer", i)
		}
		layers[i] = lw
	}

	ropeTables, err := d.BuildRoPETables(cfg.HeadDim, cfg.MaxContext)
	if err != nil {
		return nil, fmt.Errorf("model: materialize RoPE tables: %w", err)
	}

	return &Weights{
		Embedding: embBuf,
		Layers:    layers,
		FinalNorm: finalNorm,
		LMHead:    lmHead,
		RoPE:      ropeTables,
	}, nil
}

// Release frees every device resource the weights own.
func (w *Weights) Release() {
	if w == nil {
		return
	}
	w.Embedding.Release()
	w.FinalNorm.Release()
	w.LMHead.Release()
	w.RoPE.Release()
	for _, l := range w.Layers {
		for _, p := range []*Projection{l.QProj, l.KProj, l.VProj, l.OProj, l.GateProj, l.UpProj, l.DownProj} {
			p.Release()
		}
		l.InputNorm.Release()
		l.PostNorm.Release()
	}
}
