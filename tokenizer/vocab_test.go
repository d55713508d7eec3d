package tokenizer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	content := "<unk>\na 1\nb\\n 2.5\n\\\\ 3\n"
	path := filepath.Join(t.TempDir(), "vocab.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if v.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", v.Size())
	}
	if v.String(0) != "<unk>" {
		t.Errorf("tokens[0] = %q, want <unk>", v.String(0))
	}
	if v.String(1) != "a" || v.Score(1) != 1 {
		t.Errorf("tokens[1] = %q score %v, want a/1", v.String(1), v.Score(1))
	}
	if v.String(2) != "b\n" || v.Score(2) != 2.5 {
		t.Errorf("tokens[2] = %q score %v, want (b\\n)/2.5", v.String(2), v.Score(2))
	}
	if v.BOS != DefaultBOS || v.EOS != DefaultEOS {
		t.Errorf("special ids = %d/%d, want defaults %d/%d", v.BOS, v.EOS, DefaultBOS, DefaultEOS)
	}
}

func TestLookupFirstMatchOnDuplicate(t *testing.T) {
	v := &Vocabulary{tokens: []string{"x", "x"}, scores: []float32{1, 2}}
	v.index()
	id, ok := v.Lookup("x")
	if !ok || id != 0 {
		t.Errorf("Lookup(x) = %d, %v; want 0, true", id, ok)
	}
}
