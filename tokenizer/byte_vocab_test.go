package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewByteVocabularyHasOneTokenPerByteValue(t *testing.T) {
	v := NewByteVocabulary()
	assert.Equal(t, 256, v.Size())
	assert.Equal(t, "A", v.String(0x41))
}

func TestByteVocabularyEncodeDecodeRoundtrip(t *testing.T) {
	v := NewByteVocabulary()
	text := "abc123"
	ids := v.Encode(text, 0)
	assert.Len(t, ids, len(text), "one id per byte, no merges possible among single-byte tokens")
	assert.Equal(t, text, v.DecodeSequence(ids))
}

func TestByteVocabularyScoresMonotonicallyDecreasing(t *testing.T) {
	v := NewByteVocabulary()
	assert.Greater(t, v.Score(0), v.Score(255))
}
