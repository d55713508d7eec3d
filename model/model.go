package model

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/vlmcl/moondream/container"
	"github.com/vlmcl/moondream/gpu"
)

// State is one of the Model lifecycle states:
// fresh → loaded → ready → {running | idle} → destroyed.
type State int

const (
	StateFresh State = iota
	StateLoaded
	StateReady
	StateRunning
	StateIdle
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateLoaded:
		return "loaded"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateIdle:
		return "idle"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// scratch holds the model's eight scratch buffers: two hidden-dimension
// ping-pong buffers, four per-head workspaces, and two intermediate-
// dimension workspaces.
type scratch struct {
	a, b          *gpu.Buffer // hidden-dim ping-pong
	q, k, v, attn *gpu.Buffer // hidden-dim per-head workspaces
	gate, up      *gpu.Buffer // intermediate-dim workspaces
}

func allocScratch(d *gpu.Device, cfg Config, maxSeq int) (*scratch, error) {
	hiddenBytes := maxSeq * cfg.HiddenDim * 2
	interBytes := maxSeq * cfg.Intermediate * 2

	bufs := make([]*gpu.Buffer, 0, 8)
	alloc := func(size int) (*gpu.Buffer, error) {
		b, err := d.CreateBuffer(size, gpu.ReadWrite, nil)
		if err != nil {
			for _, prior := range bufs {
				prior.Release()
			}
			return nil, err
		}
		bufs = append(bufs, b)
		return b, nil
	}

	s := &scratch{}
	var err error
	if s.a, err = alloc(hiddenBytes); err != nil {
		return nil, fmt.Errorf("model: scratch a: %w", err)
	}
	if s.b, err = alloc(hiddenBytes); err != nil {
		return nil, fmt.Errorf("model: scratch b: %w", err)
	}
	if s.q, err = alloc(hiddenBytes); err != nil {
		return nil, fmt.Errorf("model: scratch q: %w", err)
	}
	if s.k, err = alloc(hiddenBytes); err != nil {
		return nil, fmt.Errorf("model: scratch k: %w", err)
	}
	if s.v, err = alloc(hiddenBytes); err != nil {
		return nil, fmt.Errorf("model: scratch v: %w", err)
	}
	if s.attn, err = alloc(hiddenBytes); err != nil {
		return nil, fmt.Errorf("model: scratch attn: %w", err)
	}
	if s.gate, err = alloc(interBytes); err != nil {
		return nil, fmt.Errorf("model: scratch gate: %w", err)
	}
	if s.up, err = alloc(interBytes); err != nil {
		return nil, fmt.Errorf("model: scratch up: %w", err)
	}
	return s, nil
}

func (s *scratch) release() {
	if s == nil {
		return
	}
	for _, b := range []*gpu.Buffer{s.a, s.b, s.q, s.k, s.v, s.attn, s.gate, s.up} {
		b.Release()
	}
}

// Model aggregates the container, compiled programs, weights, KV-cache,
// and scratch buffers for one loaded model. The device is borrowed, not
// owned.
type Model struct {
	device    *gpu.Device
	container *container.Container
	programs  *gpu.Programs
	weights   *Weights
	vision    *VisionWeights
	cache     *KVCache
	scratch   *scratch
	cfg       Config

	// logits holds the last Forward call's output; lastHidden stages the
	// final position's hidden state for the lm_head projection;
	// tokenIDBuf is the transient upload buffer for the current
	// request's token ids, grown on demand.
	logits     *gpu.Buffer
	lastHidden *gpu.Buffer
	tokenIDBuf *gpu.Buffer

	state State
}

// Load opens the container, builds the seven kernel programs from
// kernelDir (with any extraBuildOpts appended after the canonical option
// set, e.g. envconfig.ExtraBuildOptions()), resolves and uploads weights,
// materializes the RoPE tables, and allocates scratch and KV-cache.
// Returns a Model in state `ready`.
func Load(d *gpu.Device, modelPath, kernelDir string, cfg Config, extraBuildOpts ...string) (*Model, error) {
	c, err := container.Open(modelPath)
	if err != nil {
		return nil, fmt.Errorf("model: open container: %w", err)
	}
	slog.Debug("container opened", "tensors", c.TensorCount(), "path", modelPath)

	programs, err := buildPrograms(d, kernelDir, extraBuildOpts...)
	if err != nil {
		c.Close()
		return nil, err
	}

	m := &Model{device: d, container: c, programs: programs, cfg: cfg, state: StateLoaded}

	weights, err := LoadWeights(d, c, cfg)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("model: load weights: %w", err)
	}
	m.weights = weights

	vision, err := LoadVisionWeights(d, c, cfg)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("model: load vision weights: %w", err)
	}
	if vision == nil {
		slog.Debug("container has no vision tensors, image input unsupported")
	}
	m.vision = vision

	cache, err := NewKVCache(d, cfg)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("model: allocate kv-cache: %w", err)
	}
	m.cache = cache

	maxSeq := cfg.MaxContext
	s, err := allocScratch(d, cfg, maxSeq)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("model: allocate scratch: %w", err)
	}
	m.scratch = s

	logits, err := d.CreateBuffer(cfg.VocabSize*2, gpu.ReadWrite, nil)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("model: allocate logits buffer: %w", err)
	}
	m.logits = logits

	lastHidden, err := d.CreateBuffer(cfg.HiddenDim*2, gpu.ReadWrite, nil)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("model: allocate last-hidden buffer: %w", err)
	}
	m.lastHidden = lastHidden

	m.state = StateReady
	return m, nil
}

func buildPrograms(d *gpu.Device, kernelDir string, extraOpts ...string) (*gpu.Programs, error) {
	build := func(name string) (*gpu.Program, error) {
		return d.BuildFromFile(filepath.Join(kernelDir, name), extraOpts...)
	}

	gemm, err := build("gemm.cl")
	if err != nil {
		return nil, fmt.Errorf("model: build gemm.cl: %w", err)
	}
	attention, err := build("attention.cl")
	if err != nil {
		return nil, fmt.Errorf("model: build attention.cl: %w", err)
	}
	layernorm, err := build("layernorm.cl")
	if err != nil {
		return nil, fmt.Errorf("model: build layernorm.cl: %w", err)
	}
	activations, err := build("activations.cl")
	if err != nil {
		return nil, fmt.Errorf("model: build activations.cl: %w", err)
	}
	rope, err := build("rope.cl")
	if err != nil {
		return nil, fmt.Errorf("model: build rope.cl: %w", err)
	}
	embedding, err := build("embedding.cl")
	if err != nil {
		return nil, fmt.Errorf("model: build embedding.cl: %w", err)
	}
	vision, err := build("vision.cl")
	if err != nil {
		return nil, fmt.Errorf("model: build vision.cl: %w", err)
	}

	return &gpu.Programs{
		GEMM: gemm, Attention: attention, LayerNorm: layernorm,
		Activation: activations, RoPE: rope, Embedding: embedding, Vision: vision,
	}, nil
}

// State returns the model's current lifecycle state.
func (m *Model) State() State { return m.state }

// Container exposes the opened weight container so a caller can resolve a
// vocabulary against its metadata (tokenizer.Load's container argument).
func (m *Model) Container() *container.Container { return m.container }

// ResetCache clears the KV-cache length. Legal in state `idle` (or
// `ready`, before the first request).
func (m *Model) ResetCache() {
	m.cache.Reset()
}

// Close releases every device resource the model owns (container mapping,
// programs, weights, cache, scratch). Safe to call on a partially
// constructed Model.
func (m *Model) Close() error {
	m.scratch.release()
	m.cache.Release()
	m.weights.Release()
	m.vision.Release()
	m.programs.Release()
	m.logits.Release()
	m.lastHidden.Release()
	m.tokenIDBuf.Release()
	m.state = StateDestroyed
	if m.container != nil {
		return m.container.Close()
	}
	return nil
}
