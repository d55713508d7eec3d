package tokenizer

import (
	"errors"

	"github.com/vlmcl/moondream/container"
)

// errNoVocabulary is returned when neither the container nor an explicit
// vocabPath yields a vocabulary.
var errNoVocabulary = errors.New("tokenizer: no vocabulary in container metadata or file")

// Load resolves the vocabulary: container metadata is authoritative and
// tried first regardless of vocabPath. vocabPath is only consulted as the
// fallback, for containers that carry no tokenizer.ggml.* metadata of
// their own. Callers whose container lacks vocabulary metadata and were
// given no vocabPath either get the error back and are expected to fall
// back to per-byte encoding (see NewByteVocabulary), which this package
// does not itself decide to use since it has no notion of "no vocabulary
// at all."
func Load(c *container.Container, vocabPath string) (*Vocabulary, error) {
	if v, err := LoadFromContainer(c); err == nil {
		return v, nil
	}
	if vocabPath != "" {
		return LoadFromFile(vocabPath)
	}
	return nil, errNoVocabulary
}
