package model

import (
	"fmt"

	"github.com/vlmcl/moondream/gpu"
)

// rmsEps is the RMSNorm epsilon used throughout the forward pass.
const rmsEps = 1e-5

// Forward runs one prefill-or-decode step over tokenIDs (length S) and
// returns the logits buffer for the last position, shaped [vocab_size]
// half-floats. decode is S == 1; prefill is S > 1. p0, the number of
// positions already in the KV-cache, is read from the cache at entry and
// the cache is advanced by S positions before Forward returns.
//
// The single in-order queue gives every step here producer-consumer
// ordering for free; Forward issues a blocking Finish only once, right
// before the host reads back the logits.
func (m *Model) Forward(tokenIDs []int32) (*gpu.Buffer, error) {
	if m.state != StateReady && m.state != StateIdle {
		return nil, fmt.Errorf("%w: state is %s", ErrNotReady, m.state)
	}

	s := len(tokenIDs)
	if s == 0 {
		return nil, fmt.Errorf("model: forward called with empty token sequence")
	}
	p0 := m.cache.Length()
	if p0+s > m.cfg.MaxContext {
		return nil, fmt.Errorf("%w: %d + %d > %d", ErrBudgetExceeded, p0, s, m.cfg.MaxContext)
	}
	decode := s == 1

	m.state = StateRunning
	defer func() { m.state = StateIdle }()

	if err := m.uploadTokenIDs(tokenIDs); err != nil {
		return nil, err
	}

	hidden := m.cfg.HiddenDim

	if _, err := m.device.EmbeddingLookup(m.programs, m.tokenIDBuf, m.weights.Embedding, m.scratch.a, s, hidden); err != nil {
		return nil, fmt.Errorf("model: embedding lookup: %w", err)
	}

	return m.runLayers(s, p0, decode)
}

// ForwardWithImage runs a prefill where scratch_a's first numImageTokens
// rows are the caller's already-projected vision embeddings instead of a
// text embedding lookup, and the remaining rows are the ordinary text-token embedding
// lookup for tokenIDs. The combined sequence then runs through the same
// per-layer loop Forward uses — there is nothing vision-specific about a
// transformer layer once its input rows are embeddings. Only valid as a
// prefill: numImageTokens+len(tokenIDs) must be > 1.
func (m *Model) ForwardWithImage(imageEmbeds *gpu.Buffer, numImageTokens int, tokenIDs []int32) (*gpu.Buffer, error) {
	if m.state != StateReady && m.state != StateIdle {
		return nil, fmt.Errorf("%w: state is %s", ErrNotReady, m.state)
	}
	s := numImageTokens + len(tokenIDs)
	if s <= 1 {
		return nil, fmt.Errorf("model: forward-with-image requires a multi-row prefill, got %d rows", s)
	}
	p0 := m.cache.Length()
	if p0+s > m.cfg.MaxContext {
		return nil, fmt.Errorf("%w: %d + %d > %d", ErrBudgetExceeded, p0, s, m.cfg.MaxContext)
	}

	m.state = StateRunning
	defer func() { m.state = StateIdle }()

	hidden := m.cfg.HiddenDim
	imageBytes := numImageTokens * hidden * 2
	if imageBytes > 0 {
		if _, err := m.device.CopyBuffer(imageEmbeds, 0, m.scratch.a, 0, imageBytes); err != nil {
			return nil, fmt.Errorf("model: copy image embeddings: %w", err)
		}
	}
	if len(tokenIDs) > 0 {
		if err := m.uploadTokenIDs(tokenIDs); err != nil {
			return nil, err
		}
		if _, err := m.device.EmbeddingLookup(m.programs, m.tokenIDBuf, m.weights.Embedding, m.scratch.b, len(tokenIDs), hidden); err != nil {
			return nil, fmt.Errorf("model: embedding lookup: %w", err)
		}
		if _, err := m.device.CopyBuffer(m.scratch.b, 0, m.scratch.a, imageBytes, len(tokenIDs)*hidden*2); err != nil {
			return nil, fmt.Errorf("model: place text embeddings: %w", err)
		}
	}

	return m.runLayers(s, p0, false)
}

// runLayers is the shared body of Forward and ForwardWithImage: the
// per-layer transformer loop, KV-cache append, final norm, and lm_head
// projection of the last position, assuming scratch_a[0:s] already holds
// the input embeddings.
func (m *Model) runLayers(s, p0 int, decode bool) (*gpu.Buffer, error) {
	hidden := m.cfg.HiddenDim
	inter := m.cfg.Intermediate
	heads := m.cfg.Heads
	headDim := m.cfg.HeadDim

	for i := range m.weights.Layers {
		layer := &m.weights.Layers[i]

		normed, err := m.normOrPass(m.scratch.a, layer.InputNorm, m.scratch.b, s, hidden)
		if err != nil {
			return nil, fmt.Errorf("model: layer %d input norm: %w", i, err)
		}

		if err := m.project(normed, layer.QProj, m.scratch.q, s, hidden, hidden, decode); err != nil {
			return nil, fmt.Errorf("model: layer %d q_proj: %w", i, err)
		}
		if err := m.project(normed, layer.KProj, m.scratch.k, s, hidden, hidden, decode); err != nil {
			return nil, fmt.Errorf("model: layer %d k_proj: %w", i, err)
		}
		if err := m.project(normed, layer.VProj, m.scratch.v, s, hidden, hidden, decode); err != nil {
			return nil, fmt.Errorf("model: layer %d v_proj: %w", i, err)
		}

		if _, err := m.device.RoPEApply(m.programs, m.scratch.q, m.scratch.k, m.weights.RoPE.Cos, m.weights.RoPE.Sin, p0, s, heads, headDim); err != nil {
			return nil, fmt.Errorf("model: layer %d rope: %w", i, err)
		}

		kvBytes := s * heads * headDim * 2
		kvOffset := m.cache.ByteOffset(p0)
		kCache, vCache := m.cache.K[i], m.cache.V[i]
		if _, err := m.device.CopyBuffer(m.scratch.k, 0, kCache, kvOffset, kvBytes); err != nil {
			return nil, fmt.Errorf("model: layer %d kv-cache append k: %w", i, err)
		}
		if _, err := m.device.CopyBuffer(m.scratch.v, 0, vCache, kvOffset, kvBytes); err != nil {
			return nil, fmt.Errorf("model: layer %d kv-cache append v: %w", i, err)
		}

		if decode {
			if _, err := m.device.AttentionDecode(m.programs, m.scratch.q, kCache, vCache, m.scratch.attn, p0, heads, headDim); err != nil {
				return nil, fmt.Errorf("model: layer %d attention decode: %w", i, err)
			}
		} else {
			if _, err := m.device.AttentionPrefill(m.programs, m.scratch.q, kCache, vCache, m.scratch.attn, s, p0, heads, headDim); err != nil {
				return nil, fmt.Errorf("model: layer %d attention prefill: %w", i, err)
			}
		}

		if err := m.project(m.scratch.attn, layer.OProj, m.scratch.b, s, hidden, hidden, decode); err != nil {
			return nil, fmt.Errorf("model: layer %d o_proj: %w", i, err)
		}
		if _, err := m.device.VectorAdd(m.programs, m.scratch.a, m.scratch.b, m.scratch.a, s*hidden); err != nil {
			return nil, fmt.Errorf("model: layer %d attention residual: %w", i, err)
		}

		postNormed, err := m.normOrPass(m.scratch.a, layer.PostNorm, m.scratch.b, s, hidden)
		if err != nil {
			return nil, fmt.Errorf("model: layer %d post norm: %w", i, err)
		}

		// A missing gate/up/down weight zeroes the block's output;
		// zeroing any intermediate step of a SwiGLU MLP is equivalent
		// in net effect to not running it at all, so a missing slot
		// here skips the whole block and the residual passes through
		// unchanged.
		if layer.GateProj != nil && layer.UpProj != nil && layer.DownProj != nil {
			if err := m.project(postNormed, layer.GateProj, m.scratch.gate, s, hidden, inter, decode); err != nil {
				return nil, fmt.Errorf("model: layer %d gate_proj: %w", i, err)
			}
			if err := m.project(postNormed, layer.UpProj, m.scratch.up, s, hidden, inter, decode); err != nil {
				return nil, fmt.Errorf("model: layer %d up_proj: %w", i, err)
			}
			if _, err := m.device.SiLUGateMultiply(m.programs, m.scratch.gate, m.scratch.up, s*inter); err != nil {
				return nil, fmt.Errorf("model: layer %d silu gate: %w", i, err)
			}
			if err := m.project(m.scratch.gate, layer.DownProj, m.scratch.b, s, inter, hidden, decode); err != nil {
				return nil, fmt.Errorf("model: layer %d down_proj: %w", i, err)
			}
			if _, err := m.device.VectorAdd(m.programs, m.scratch.a, m.scratch.b, m.scratch.a, s*hidden); err != nil {
				return nil, fmt.Errorf("model: layer %d mlp residual: %w", i, err)
			}
		}
	}

	if err := m.cache.Append(s); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	final, err := m.normOrPass(m.scratch.a, m.weights.FinalNorm, m.scratch.b, s, hidden)
	if err != nil {
		return nil, fmt.Errorf("model: final norm: %w", err)
	}

	lastOffset := (s - 1) * hidden * 2
	if _, err := m.device.CopyBuffer(final, lastOffset, m.lastHidden, 0, hidden*2); err != nil {
		return nil, fmt.Errorf("model: extract last position: %w", err)
	}

	if err := m.project(m.lastHidden, m.weights.LMHead, m.logits, 1, hidden, m.cfg.VocabSize, true); err != nil {
		return nil, fmt.Errorf("model: lm_head: %w", err)
	}

	if err := m.device.Finish(); err != nil {
		return nil, fmt.Errorf("model: finish: %w", err)
	}

	return m.logits, nil
}

// project writes a [rows, k] × weight[k, n] projection into output, using
// gemv for a single-row decode step and the image-sampling gemm otherwise.
// A weight on the buffer degraded path goes through the tiled buffer gemm
// instead. A nil weight is the missing-per-layer-weight degraded path: the
// projection becomes an identity pass-through, a device-to-device copy of
// input into output.
func (m *Model) project(input *gpu.Buffer, weight *Projection, output *gpu.Buffer, rows, k, n int, decode bool) error {
	switch {
	case weight == nil:
		_, err := m.device.CopyBuffer(input, 0, output, 0, rows*k*2)
		return err
	case weight.Image == nil:
		_, err := m.device.GEMMTiled(m.programs, input, weight.Buf, output, rows, k, n)
		return err
	case decode:
		_, err := m.device.GEMV(m.programs, input, weight.Image, output, k, n)
		return err
	default:
		_, err := m.device.GEMMImage(m.programs, input, weight.Image, output, rows, k, n)
		return err
	}
}

// normOrPass runs RMSNorm(input, weight) into output and returns output, or
// returns input unchanged (no dispatch) when weight is nil — the degraded
// path for a missing norm vector behaves the same as a missing Q/K/V/O
// projection would: skip it and let the data flow through.
func (m *Model) normOrPass(input, weight, output *gpu.Buffer, rows, dim int) (*gpu.Buffer, error) {
	if weight == nil {
		return input, nil
	}
	if _, err := m.device.RMSNorm(m.programs, input, weight, output, rows, dim, rmsEps); err != nil {
		return nil, err
	}
	return output, nil
}

// uploadTokenIDs writes tokenIDs as little-endian int32 into the model's
// transient token-id buffer, growing it if the request is larger than any
// seen so far.
func (m *Model) uploadTokenIDs(tokenIDs []int32) error {
	needed := len(tokenIDs) * 4
	if m.tokenIDBuf == nil || m.tokenIDBuf.Size() < needed {
		if m.tokenIDBuf != nil {
			m.tokenIDBuf.Release()
		}
		buf, err := m.device.CreateBuffer(needed, gpu.ReadOnly, nil)
		if err != nil {
			return fmt.Errorf("model: allocate token-id buffer: %w", err)
		}
		m.tokenIDBuf = buf
	}

	raw := make([]byte, needed)
	for i, id := range tokenIDs {
		raw[4*i] = byte(id)
		raw[4*i+1] = byte(id >> 8)
		raw[4*i+2] = byte(id >> 16)
		raw[4*i+3] = byte(id >> 24)
	}
	return m.tokenIDBuf.WriteBlocking(0, raw)
}
