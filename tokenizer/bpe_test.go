package tokenizer

import (
	"reflect"
	"testing"
)

func newTestVocab() *Vocabulary {
	v := &Vocabulary{
		tokens: []string{"<unk>", "a", "b", "c", "ab", "abc", "<0x41>"},
		scores: []float32{0, 1, 1, 1, 5, 10, 0},
		BOS:    1, EOS: 2, PAD: 0, UNK: 0,
	}
	v.index()
	return v
}

func TestEncodeGreedyMerge(t *testing.T) {
	v := newTestVocab()
	ids := v.Encode("abc", 0)
	want := []int{5} // "a"+"b" -> "ab" (score 5) beats staying split, then "ab"+"c" -> "abc" (score 10)
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Encode(abc) = %v, want %v", ids, want)
	}
}

func TestEncodeEmptyString(t *testing.T) {
	v := newTestVocab()
	ids := v.Encode("", 0)
	if len(ids) != 0 {
		t.Errorf("Encode(\"\") = %v, want empty", ids)
	}
}

func TestEncodeMaxTokensCap(t *testing.T) {
	v := newTestVocab()
	ids := v.Encode("abc", 1)
	if len(ids) != 1 {
		t.Fatalf("Encode with maxTokens=1 returned %d ids, want 1", len(ids))
	}
}

func TestEncodeByteFallback(t *testing.T) {
	v := newTestVocab()
	// 'A' (0x41) has a direct fallback entry; 'z' does not and must fall to UNK.
	ids := v.Encode("Az", 0)
	if len(ids) != 2 {
		t.Fatalf("Encode(Az) = %v, want 2 ids", ids)
	}
	if ids[0] != 6 { // <0x41>
		t.Errorf("ids[0] = %d, want 6 (<0x41>)", ids[0])
	}
	if ids[1] != v.UNK {
		t.Errorf("ids[1] = %d, want UNK %d", ids[1], v.UNK)
	}
}

func TestDecodeSequenceByteFallbackAndSentinel(t *testing.T) {
	v := &Vocabulary{tokens: []string{"<0x41>", "▁", "b"}}
	v.index()
	out := v.DecodeSequence([]int{0, 1, 2})
	if out != "A b" {
		t.Errorf("DecodeSequence = %q, want %q", out, "A b")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	v := newTestVocab()
	a := v.Encode("abc", 0)
	b := v.Encode("abc", 0)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Encode is not deterministic: %v != %v", a, b)
	}
}
