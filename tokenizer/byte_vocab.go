package tokenizer

import "fmt"

// NewByteVocabulary builds the degraded-path vocabulary used when no
// vocabulary is available (neither --vocab nor
// container metadata) but a prompt still needs encoding: one token per
// possible byte value, no merges. Bytes 0x00-0x7F are stored as the byte
// itself; bytes 0x80-0xFF are stored as their `<0xHH>` byte-fallback
// token, which is what Encode looks up for each byte of a multi-byte UTF-8
// character and what DecodeSequence turns back into the raw byte. No two
// tokens ever concatenate into a third vocabulary entry, so Encode's merge
// loop makes no merges and, for valid UTF-8 input, Encode/DecodeSequence
// degrade exactly to "every input byte becomes its id" without any
// special-casing in the encoder.
func NewByteVocabulary() *Vocabulary {
	v := &Vocabulary{
		tokens: make([]string, 256),
		scores: make([]float32, 256),
		BOS:    DefaultBOS,
		EOS:    DefaultEOS,
		PAD:    DefaultPAD,
		UNK:    DefaultUNK,
	}
	for i := 0; i < 256; i++ {
		if i < 0x80 {
			v.tokens[i] = string([]byte{byte(i)})
		} else {
			v.tokens[i] = fmt.Sprintf("<0x%02X>", i)
		}
		v.scores[i] = float32(256 - i)
	}
	v.index()
	return v
}
