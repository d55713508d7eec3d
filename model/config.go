// Package model assembles the gpu dispatch layer, the weight container,
// and the tokenizer into a transformer forward pass with a KV-cache,
// greedy prefill+decode generation, and the host-side argmax that closes
// the loop back to token ids.
package model

// Config is the frozen set of architectural constants for one loaded
// model. Vision fields describe the SigLIP-style encoder; LM fields
// describe the Phi-1.5-style causal decoder this engine actually drives
// token-by-token (the vision tower runs once per image in EncodeImage, and
// its projected output reaches the decoder through ForwardWithImage).
type Config struct {
	VisionImageSide   int
	VisionPatchSize   int
	VisionLayers      int
	VisionHiddenDim   int
	VisionHeads       int
	VisionPatches     int // (VisionImageSide / VisionPatchSize)^2
	ProjectionDim     int

	VocabSize    int
	Layers       int
	HiddenDim    int
	Heads        int
	HeadDim      int // HiddenDim / Heads
	Intermediate int
	MaxContext   int
}

// DefaultConfig returns the Moondream2-class architectural constants. Load
// uses the Config it is given as is; nothing reads these values from the
// container's metadata.
func DefaultConfig() Config {
	const (
		hiddenDim  = 2048
		heads      = 32
		visionSide = 378
		patch      = 14
	)
	return Config{
		VisionImageSide: visionSide,
		VisionPatchSize: patch,
		VisionLayers:    27,
		VisionHiddenDim: 1152,
		VisionHeads:     16,
		VisionPatches:   (visionSide / patch) * (visionSide / patch),
		ProjectionDim:   hiddenDim,

		VocabSize:    51200,
		Layers:       24,
		HiddenDim:    hiddenDim,
		Heads:        heads,
		HeadDim:      hiddenDim / heads,
		Intermediate: 8192,
		MaxContext:   2048,
	}
}
