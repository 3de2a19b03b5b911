package decode

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
)

// header is the subset of the image pixel module the renderer needs
type header struct {
	transferSyntax string
	modality       string
	photometric    string

	samples       int
	planar        int
	frames        int
	rows          int
	columns       int
	bitsAllocated int
	bitsStored    int
	pixelRep      int

	hasWindow bool
	center    float64
	width     float64
	slope     float64
	intercept float64
}

// raster is a rendered first frame
type raster struct {
	img    image.Image
	center float64
	width  float64
	size   int
}

func readHeader(elems elementIndex) (*header, error) {
	h := &header{
		transferSyntax: elems.string(tagTransferSyntaxUID),
		modality:       elems.string(tagModality),
		photometric:    elems.string(tagPhotometric),
		samples:        1,
		frames:         1,
		slope:          1,
	}

	var ok bool
	if h.rows, ok = elems.int(tagRows); !ok || h.rows <= 0 {
		return nil, fmt.Errorf("missing or invalid rows")
	}
	if h.columns, ok = elems.int(tagColumns); !ok || h.columns <= 0 {
		return nil, fmt.Errorf("missing or invalid columns")
	}
	if h.bitsAllocated, ok = elems.int(tagBitsAllocated); !ok {
		return nil, fmt.Errorf("missing bits allocated")
	}
	if h.bitsAllocated != 8 && h.bitsAllocated != 16 {
		return nil, fmt.Errorf("unsupported bits allocated: %d", h.bitsAllocated)
	}
	if h.bitsStored, ok = elems.int(tagBitsStored); !ok || h.bitsStored <= 0 || h.bitsStored > h.bitsAllocated {
		h.bitsStored = h.bitsAllocated
	}
	if n, ok := elems.int(tagSamplesPerPixel); ok {
		h.samples = n
	}
	if h.samples != 1 && h.samples != 3 {
		return nil, fmt.Errorf("unsupported samples per pixel: %d", h.samples)
	}
	if h.samples == 3 && h.bitsAllocated != 8 {
		return nil, fmt.Errorf("unsupported color depth: %d bits", h.bitsAllocated)
	}
	h.planar, _ = elems.int(tagPlanarConfiguration)
	h.pixelRep, _ = elems.int(tagPixelRepresentation)
	if n, ok := elems.int(tagNumberOfFrames); ok && n > 0 {
		h.frames = n
	}

	if h.photometric == "" {
		if h.samples == 3 {
			h.photometric = "RGB"
		} else {
			h.photometric = "MONOCHROME2"
		}
	}

	c, okC := elems.float(tagWindowCenter)
	w, okW := elems.float(tagWindowWidth)
	if okC && okW && w >= 1 {
		h.hasWindow, h.center, h.width = true, c, w
	}
	if s, ok := elems.float(tagRescaleSlope); ok && s != 0 {
		h.slope = s
	}
	if i, ok := elems.float(tagRescaleIntercept); ok {
		h.intercept = i
	}
	return h, nil
}

// native reports whether the pixel data is stored uncompressed
func (h *header) native() bool {
	switch h.transferSyntax {
	case "", implicitVRLittleEndian, explicitVRLittleEndian, explicitVRBigEndian:
		return true
	}
	return false
}

func (h *header) bigEndian() bool {
	return h.transferSyntax == explicitVRBigEndian
}

func (h *header) frameLength() int {
	return h.rows * h.columns * h.samples * (h.bitsAllocated / 8)
}

// render converts the first frame of little-endian pixels to an 8-bit raster
func (h *header) render(pixels []byte) (raster, error) {
	n := h.frameLength()
	if len(pixels) < n {
		return raster{}, fmt.Errorf("truncated pixel data: have %d bytes, need %d", len(pixels), n)
	}
	pixels = pixels[:n]

	if h.samples == 3 {
		img := h.renderColor(pixels)
		return raster{img: img, size: len(img.Pix)}, nil
	}

	values := h.samplesOf(pixels)
	center, width := h.window(values)
	img := image.NewGray(image.Rect(0, 0, h.columns, h.rows))
	invert := h.photometric == "MONOCHROME1"
	for i, v := range values {
		g := applyWindow(v, center, width)
		if invert {
			g = 255 - g
		}
		img.Pix[i] = g
	}
	return raster{img: img, center: center, width: width, size: len(img.Pix)}, nil
}

// samplesOf returns rescaled modality values for a single-sample frame
func (h *header) samplesOf(pixels []byte) []float64 {
	count := h.rows * h.columns
	out := make([]float64, count)
	mask := uint32(1)<<uint(h.bitsStored) - 1
	signBit := uint32(1) << uint(h.bitsStored-1)

	for i := 0; i < count; i++ {
		var raw uint32
		if h.bitsAllocated == 16 {
			raw = uint32(binary.LittleEndian.Uint16(pixels[2*i:]))
		} else {
			raw = uint32(pixels[i])
		}
		raw &= mask

		v := float64(raw)
		if h.pixelRep == 1 && raw&signBit != 0 {
			v = float64(int64(raw) - int64(mask) - 1)
		}
		out[i] = v*h.slope + h.intercept
	}
	return out
}

// window returns the VOI window from the header, or spans the value range
func (h *header) window(values []float64) (float64, float64) {
	if h.hasWindow {
		return h.center, h.width
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(values) == 0 {
		return 0, 1
	}
	width := hi - lo
	if width < 1 {
		width = 1
	}
	return lo + width/2, width
}

// applyWindow maps v through a linear VOI window to 0..255
func applyWindow(v, center, width float64) uint8 {
	lo := center - width/2
	switch {
	case v <= lo:
		return 0
	case v >= lo+width:
		return 255
	}
	return uint8(math.Round((v - lo) / width * 255))
}

func (h *header) renderColor(pixels []byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, h.columns, h.rows))
	count := h.rows * h.columns
	for i := 0; i < count; i++ {
		var r, g, b uint8
		if h.planar == 1 {
			r, g, b = pixels[i], pixels[count+i], pixels[2*count+i]
		} else {
			r, g, b = pixels[3*i], pixels[3*i+1], pixels[3*i+2]
		}
		img.Pix[4*i] = r
		img.Pix[4*i+1] = g
		img.Pix[4*i+2] = b
		img.Pix[4*i+3] = 255
	}
	return img
}
