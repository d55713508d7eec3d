package model

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vlmcl/moondream/gpu"
	"github.com/vlmcl/moondream/tokenizer"
)

// maxPromptTokens caps prompt encoding.
const maxPromptTokens = 2048

// Sampler picks the next token id from a forward pass's raw half-float
// logits. A hook for alternative sampling strategies (beam search,
// speculative decoding); only Greedy is provided.
type Sampler interface {
	Sample(logits []byte, vocabSize int) int
}

// Greedy is the only Sampler this engine ships: argmax over the logits.
type Greedy struct{}

// Sample returns Argmax(logits).
func (Greedy) Sample(logits []byte, vocabSize int) int { return Argmax(logits) }

// GenerationStats reports per-request timing: prefill and decode
// wall-clock time and decode throughput.
type GenerationStats struct {
	PromptTokens       int
	GeneratedTokens    int
	PrefillMillis      float64
	DecodeMillis       float64
	DecodeTokensPerSec float64
}

// Generate runs the full tokenize → prefill → argmax → decode-loop →
// detokenize pipeline. It resets the KV-cache at the start of
// the request, writes each decoded token's text to out as it is produced,
// and stops at EOS or maxNewTokens, whichever comes first. Model is not
// safe for concurrent Generate calls.
func (m *Model) Generate(vocab *tokenizer.Vocabulary, prompt string, maxNewTokens int, sampler Sampler, out io.Writer) (*GenerationStats, error) {
	if sampler == nil {
		sampler = Greedy{}
	}

	ids := vocab.Encode(prompt, maxPromptTokens)
	if len(ids) == 0 {
		return nil, fmt.Errorf("model: prompt encoded to zero tokens")
	}

	m.ResetCache()

	tokenIDs := make([]int32, len(ids))
	for i, id := range ids {
		tokenIDs[i] = int32(id)
	}

	prefillStart := time.Now()
	logits, err := m.Forward(tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("model: prefill: %w", err)
	}
	next, err := m.sample(sampler, logits)
	if err != nil {
		return nil, err
	}
	stats := &GenerationStats{
		PromptTokens:  len(ids),
		PrefillMillis: msSince(prefillStart),
	}

	decodeStart := time.Now()
	for stats.GeneratedTokens < maxNewTokens {
		if next == vocab.EOS {
			break
		}
		if _, err := io.WriteString(out, vocab.DecodeSequence([]int{next})); err != nil {
			return nil, fmt.Errorf("model: write output: %w", err)
		}

		logits, err = m.Forward([]int32{int32(next)})
		if err != nil {
			return nil, fmt.Errorf("model: decode step %d: %w", stats.GeneratedTokens, err)
		}
		next, err = m.sample(sampler, logits)
		if err != nil {
			return nil, err
		}
		stats.GeneratedTokens++
	}
	stats.DecodeMillis = msSince(decodeStart)
	if stats.GeneratedTokens > 0 && stats.DecodeMillis > 0 {
		stats.DecodeTokensPerSec = float64(stats.GeneratedTokens) / (stats.DecodeMillis / 1000)
	}

	slog.Debug("generate complete",
		"prompt_tokens", stats.PromptTokens,
		"generated_tokens", stats.GeneratedTokens,
		"prefill_ms", stats.PrefillMillis,
		"decode_ms", stats.DecodeMillis,
		"tokens_per_sec", stats.DecodeTokensPerSec,
	)
	return stats, nil
}

func (m *Model) sample(sampler Sampler, logits *gpu.Buffer) (int, error) {
	data, err := logits.ReadBlocking(0, m.cfg.VocabSize*2)
	if err != nil {
		return 0, fmt.Errorf("model: read logits: %w", err)
	}
	return sampler.Sample(data, m.cfg.VocabSize), nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}
