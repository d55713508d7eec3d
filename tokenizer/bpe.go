package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// spaceSentinel is the SentencePiece space sentinel, the three-byte UTF-8
// sequence E2 96 81, rewritten to an ASCII space by DecodeSequence. Encode
// does not rewrite spaces into the sentinel.
const spaceSentinel = "▁"

// symbol is one element of the working sequence during merging: a token id
// paired with the string it currently represents (which may be a merge of
// several original symbols).
type symbol struct {
	id   int
	text string
}

// Encode splits text into UTF-8 scalar runs, maps each to a vocabulary
// entry (falling back to per-byte `<0xHH>` tokens and then UNK), then
// greedily merges adjacent pairs by highest score until no further merge
// applies. The result is truncated to maxTokens (if maxTokens > 0).
func (v *Vocabulary) Encode(text string, maxTokens int) []int {
	if text == "" {
		return nil
	}

	syms := v.seedSymbols(text)

	for {
		bestIdx := -1
		bestScore := float32(0)
		bestID := -1
		for i := 0; i < len(syms)-1; i++ {
			merged := syms[i].text + syms[i+1].text
			id, ok := v.Lookup(merged)
			if !ok {
				continue
			}
			score := v.Score(id)
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
				bestID = id
			}
		}
		if bestIdx == -1 {
			break
		}
		merged := syms[bestIdx].text + syms[bestIdx+1].text
		syms[bestIdx] = symbol{id: bestID, text: merged}
		syms = append(syms[:bestIdx+1], syms[bestIdx+2:]...)
	}

	ids := make([]int, len(syms))
	for i, s := range syms {
		ids[i] = s.id
	}
	if maxTokens > 0 && len(ids) > maxTokens {
		ids = ids[:maxTokens]
	}
	return ids
}

func (v *Vocabulary) seedSymbols(text string) []symbol {
	var syms []symbol
	for _, r := range text {
		runeStr := string(r)
		if id, ok := v.Lookup(runeStr); ok {
			syms = append(syms, symbol{id: id, text: runeStr})
			continue
		}
		var buf [utf8.UTFMax]byte
		n := utf8.EncodeRune(buf[:], r)
		for _, b := range buf[:n] {
			fb := fmt.Sprintf("<0x%02X>", b)
			if id, ok := v.Lookup(fb); ok {
				syms = append(syms, symbol{id: id, text: fb})
			} else {
				syms = append(syms, symbol{id: v.UNK, text: v.String(v.UNK)})
			}
		}
	}
	return syms
}

// Decode renders a single id as its vocabulary string with no sentinel or
// byte-fallback rewriting ("" for an out-of-range id).
func (v *Vocabulary) Decode(id int) string {
	return v.String(id)
}

// DecodeSequence concatenates the decoded strings of ids, rewriting
// `<0xHH>` byte-fallback tokens to their raw byte and the SentencePiece
// space sentinel to an ASCII space.
func (v *Vocabulary) DecodeSequence(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		s := v.String(id)
		if raw, ok := parseByteFallback(s); ok {
			b.WriteByte(raw)
			continue
		}
		b.WriteString(strings.ReplaceAll(s, spaceSentinel, " "))
	}
	return b.String()
}

func parseByteFallback(s string) (byte, bool) {
	if len(s) != 6 || s[0] != '<' || s[1] != '0' || s[2] != 'x' || s[5] != '>' {
		return 0, false
	}
	hi, ok1 := hexDigit(s[3])
	lo, ok2 := hexDigit(s[4])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
