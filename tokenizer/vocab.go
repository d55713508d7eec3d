// Package tokenizer implements the byte-pair vocabulary and the
// greedy-by-score merge encoder/decoder built on top of the weight
// container's metadata or a standalone text vocabulary file.
package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vlmcl/moondream/container"
)

// Special-id defaults applied when the container or text file omits them,
// matching the reference tokenizer's constant table.
const (
	DefaultBOS = 1
	DefaultEOS = 2
	DefaultPAD = 0
	DefaultUNK = 0
)

// Vocabulary is an ordered, random-access token table plus merge scores
// and the four special-token ids. Token strings are owned copies.
type Vocabulary struct {
	tokens []string
	scores []float32
	byText map[string]int

	BOS int
	EOS int
	PAD int
	UNK int
}

// DefaultSpecialTokens returns the per-model-family fallback special ids
// (BOS=1, EOS=2, PAD=0, UNK=0), used whenever a vocabulary source doesn't
// supply its own.
func DefaultSpecialTokens() (bos, eos, pad, unk int) {
	return DefaultBOS, DefaultEOS, DefaultPAD, DefaultUNK
}

// Size returns the number of tokens in the vocabulary.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// String returns the token string for id, or "" if id is out of range.
func (v *Vocabulary) String(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return ""
	}
	return v.tokens[id]
}

// Score returns the merge score for id, or 0 if out of range.
func (v *Vocabulary) Score(id int) float32 {
	if id < 0 || id >= len(v.scores) {
		return 0
	}
	return v.scores[id]
}

// Lookup returns the first token id whose string equals s.
func (v *Vocabulary) Lookup(s string) (int, bool) {
	id, ok := v.byText[s]
	return id, ok
}

func (v *Vocabulary) index() {
	v.byText = make(map[string]int, len(v.tokens))
	for i, s := range v.tokens {
		if _, exists := v.byText[s]; !exists {
			v.byText[s] = i
		}
	}
}

// LoadFromContainer builds a vocabulary from the weight container's
// tokenizer.ggml.* metadata. Missing scores default to a monotonically
// decreasing sequence; missing special ids default to the constant table.
func LoadFromContainer(c *container.Container) (*Vocabulary, error) {
	tokens, ok := c.GetStringArray("tokenizer.ggml.tokens")
	if !ok {
		return nil, fmt.Errorf("tokenizer: container metadata missing tokenizer.ggml.tokens")
	}

	v := &Vocabulary{tokens: tokens}

	if scores, ok := c.GetFloatArray("tokenizer.ggml.scores"); ok && len(scores) == len(tokens) {
		v.scores = scores
	} else {
		v.scores = make([]float32, len(tokens))
		for i := range v.scores {
			v.scores[i] = float32(len(tokens) - i)
		}
	}

	v.BOS = intOrDefault(c, "tokenizer.ggml.bos_token_id", DefaultBOS)
	v.EOS = intOrDefault(c, "tokenizer.ggml.eos_token_id", DefaultEOS)
	v.UNK = intOrDefault(c, "tokenizer.ggml.unk_token_id", DefaultUNK)
	v.PAD = intOrDefault(c, "tokenizer.ggml.pad_token_id", DefaultPAD)

	v.index()
	return v, nil
}

func intOrDefault(c *container.Container, key string, def int) int {
	if n, ok := c.GetUint32(key); ok {
		return int(n)
	}
	return def
}

// LoadFromFile builds a vocabulary from a text file: one token per line, a
// trailing whitespace-separated number is the merge score (else 0), and
// the backslash escapes \n \t \r \\ are unescaped in place. Special ids
// take the documented default table; a text vocabulary carries none of its
// own.
func LoadFromFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: open %s: %w", path, err)
	}
	defer f.Close()

	v := &Vocabulary{BOS: DefaultBOS, EOS: DefaultEOS, PAD: DefaultPAD, UNK: DefaultUNK}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		tok, score := splitTrailingScore(line)
		v.tokens = append(v.tokens, unescape(tok))
		v.scores = append(v.scores, score)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: read %s: %w", path, err)
	}

	v.index()
	return v, nil
}

func splitTrailingScore(line string) (string, float32) {
	idx := strings.LastIndexAny(line, " \t")
	if idx < 0 {
		return line, 0
	}
	tail := line[idx+1:]
	score, err := strconv.ParseFloat(tail, 32)
	if err != nil {
		return line, 0
	}
	return line[:idx], float32(score)
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
