package gpu

import (
	"fmt"

	"github.com/jgillich/go-opencl/cl"
	"github.com/x448/float16"
)

// WeightImage is a read-only 2-D RGBA16F texture used to store a weight
// matrix for the image-sampling GEMM path (gemm_image). Rows map to image
// rows; four consecutive matrix columns pack into one RGBA texel, so the
// column count is padded up to a multiple of 4 with zeros.
type WeightImage struct {
	device *Device
	img    *cl.MemObject
	rows   int
	cols   int // logical column count, pre-padding
	width  int // texel width = padded_cols / 4
}

// CreateWeightImage uploads a row-major [rows, cols] half-float matrix as a
// padded RGBA16F image. data must contain rows*cols float16 values.
func (d *Device) CreateWeightImage(rows, cols int, data []float16.Float16) (*WeightImage, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("gpu: weight image data length %d != rows*cols %d", len(data), rows*cols)
	}
	if !d.caps.SupportsImages {
		return nil, fmt.Errorf("gpu: device reports no image support")
	}

	paddedCols := cols
	if rem := paddedCols % 4; rem != 0 {
		paddedCols += 4 - rem
	}
	width := paddedCols / 4

	// Staging copy with the pad lanes zeroed (the float16 zero bit
	// pattern is all-zero bytes, so only the real columns are written).
	texels := make([]byte, rows*width*4*2)
	for r := 0; r < rows; r++ {
		rowBase := r * width * 4 * 2
		for c := 0; c < cols; c++ {
			bits := uint16(data[r*cols+c])
			texels[rowBase+2*c] = byte(bits)
			texels[rowBase+2*c+1] = byte(bits >> 8)
		}
	}

	format := cl.ImageFormat{ChannelOrder: cl.ChannelOrderRGBA, ChannelDataType: cl.ChannelDataTypeHalfFloat}
	desc := cl.ImageDescription{Type: cl.MemObjectTypeImage2D, Width: width, Height: rows}
	img, err := d.context.CreateImage(cl.MemReadOnly|cl.MemCopyHostPtr, format, desc, texels)
	if err != nil {
		return nil, fmt.Errorf("gpu: create weight image (%dx%d, padded %d): %w", rows, cols, paddedCols, err)
	}

	return &WeightImage{device: d, img: img, rows: rows, cols: cols, width: width}, nil
}

// Rows, Cols and TexelWidth expose the image's logical and physical shape
// to the dispatch layer when computing gemm_image work sizes.
func (w *WeightImage) Rows() int       { return w.rows }
func (w *WeightImage) Cols() int       { return w.cols }
func (w *WeightImage) TexelWidth() int { return w.width }

// Release frees the underlying image object.
func (w *WeightImage) Release() {
	if w != nil && w.img != nil {
		w.img.Release()
	}
}
