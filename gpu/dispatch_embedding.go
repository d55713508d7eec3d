package gpu

import "github.com/jgillich/go-opencl/cl"

// EmbeddingLookup gathers hidden_dim-wide rows from the embedding table for
// each of seqLen token ids, writing into out shaped [seqLen, hiddenDim].
// Four embedding lanes per work item, local size left to the driver.
func (d *Device) EmbeddingLookup(p *Programs, tokenIDs, table, out *Buffer, seqLen, hiddenDim int) (*cl.Event, error) {
	kernel, err := p.Embedding.kernel("embedding_lookup")
	if err != nil {
		return nil, err
	}
	gy := ceilDiv(hiddenDim, 4)
	return enqueue2D(d.queue, kernel, seqLen, gy, 0, 0, tokenIDs.mem, table.mem, out.mem, int32(seqLen), int32(hiddenDim))
}
