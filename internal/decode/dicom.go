package decode

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"dcmview/internal/errors"
	"dcmview/pkg/types"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
)

// Data element tags read by the decoder, as group<<16 | element
const (
	tagTransferSyntaxUID   = 0x00020010
	tagModality            = 0x00080060
	tagSamplesPerPixel     = 0x00280002
	tagPhotometric         = 0x00280004
	tagPlanarConfiguration = 0x00280006
	tagNumberOfFrames      = 0x00280008
	tagRows                = 0x00280010
	tagColumns             = 0x00280011
	tagBitsAllocated       = 0x00280100
	tagBitsStored          = 0x00280101
	tagPixelRepresentation = 0x00280103
	tagWindowCenter        = 0x00281050
	tagWindowWidth         = 0x00281051
	tagRescaleIntercept    = 0x00281052
	tagRescaleSlope        = 0x00281053
	tagPixelData           = 0x7FE00010
)

const (
	implicitVRLittleEndian = "1.2.840.10008.1.2"
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	explicitVRBigEndian    = "1.2.840.10008.1.2.2"
)

// HandleSource resolves identifiers back to the handles they were minted for
type HandleSource interface {
	Lookup(id types.ImageID) (*types.FileHandle, bool)
}

// DICOMDecoder decodes native (uncompressed) DICOM pixel data into an 8-bit
// display raster.
type DICOMDecoder struct {
	files HandleSource
}

// NewDICOMDecoder creates a decoder reading bytes through files
func NewDICOMDecoder(files HandleSource) *DICOMDecoder {
	return &DICOMDecoder{files: files}
}

// Decode implements Decoder
func (d *DICOMDecoder) Decode(ctx context.Context, id types.ImageID) (*types.DecodedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewDecodeError(string(id), err)
	}
	h, ok := d.files.Lookup(id)
	if !ok {
		return nil, errors.NewDecodeError(string(id), errors.ErrFileNotFound)
	}

	type result struct {
		img *types.DecodedImage
		err error
	}
	done := make(chan result, 1)
	go func() {
		img, err := decodeHandle(id, h)
		done <- result{img, err}
	}()

	select {
	case r := <-done:
		return r.img, r.err
	case <-ctx.Done():
		return nil, errors.NewDecodeError(string(id), ctx.Err())
	}
}

func decodeHandle(id types.ImageID, h *types.FileHandle) (*types.DecodedImage, error) {
	r, err := h.Open()
	if err != nil {
		return nil, errors.NewDecodeError(string(id),
			errors.NewFileError("cannot open", h.Name, errors.FileAccessDenied, err))
	}
	defer r.Close()

	ds, err := dicom.Parse(r)
	if err != nil {
		return nil, errors.NewDecodeError(string(id), err)
	}

	elems := newElementIndex(ds)
	hdr, err := readHeader(elems)
	if err != nil {
		return nil, errors.NewDecodeError(string(id), err)
	}
	if !hdr.native() {
		return nil, errors.NewUnsupportedFormatError(string(id),
			fmt.Errorf("transfer syntax %s is not uncompressed", hdr.transferSyntax))
	}

	pixelEl, ok := elems[tagPixelData]
	if !ok {
		return nil, errors.NewDecodeError(string(id), errors.New("no pixel data"))
	}
	pixels, err := pixelBytes(pixelEl.ValueField, hdr.bigEndian() && hdr.bitsAllocated == 16)
	if err != nil {
		return nil, errors.NewDecodeError(string(id), err)
	}

	raster, err := hdr.render(pixels)
	if err != nil {
		return nil, errors.NewDecodeError(string(id), err)
	}

	return &types.DecodedImage{
		ID:            id,
		Name:          h.Name,
		Image:         raster.img,
		Width:         hdr.columns,
		Height:        hdr.rows,
		Frames:        hdr.frames,
		BitsAllocated: hdr.bitsAllocated,
		PixelFormat:   hdr.photometric,
		Modality:      hdr.modality,
		WindowCenter:  raster.center,
		WindowWidth:   raster.width,
		SizeBytes:     int64(raster.size),
	}, nil
}

// elementIndex keys data elements by their numeric tag
type elementIndex map[uint32]*dicom.DataElement

func newElementIndex(ds *dicom.DataSet) elementIndex {
	idx := make(elementIndex, len(ds.Elements))
	for tag, el := range ds.Elements {
		idx[uint32(tag)] = el
	}
	return idx
}

func (e elementIndex) int(tag uint32) (int, bool) {
	el, ok := e[tag]
	if !ok || el == nil {
		return 0, false
	}
	switch v := el.ValueField.(type) {
	case []uint16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []int16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []uint32:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []int32:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.Atoi(cleanString(v[0]))
			return n, err == nil
		}
	}
	return 0, false
}

func (e elementIndex) float(tag uint32) (float64, bool) {
	el, ok := e[tag]
	if !ok || el == nil {
		return 0, false
	}
	switch v := el.ValueField.(type) {
	case []string:
		if len(v) > 0 {
			// multi-valued DS arrives either split or backslash-joined
			first := strings.SplitN(v[0], `\`, 2)[0]
			f, err := strconv.ParseFloat(cleanString(first), 64)
			return f, err == nil
		}
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	case []float32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

func (e elementIndex) string(tag uint32) string {
	el, ok := e[tag]
	if !ok || el == nil {
		return ""
	}
	if v, ok := el.ValueField.([]string); ok && len(v) > 0 {
		return cleanString(v[0])
	}
	return ""
}

func cleanString(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "\x00 ")
}

// pixelBytes flattens the parser's pixel data value into little-endian
// sample bytes. More than one fragment means encapsulated data.
func pixelBytes(v interface{}, swap16 bool) ([]byte, error) {
	var raw []byte
	var err error
	switch p := v.(type) {
	case []byte:
		raw = p
	case [][]byte:
		raw, err = singleFragment(p)
	case interface{ Data() [][]byte }:
		raw, err = singleFragment(p.Data())
	case []uint16:
		out := make([]byte, 2*len(p))
		for i, s := range p {
			binary.LittleEndian.PutUint16(out[2*i:], s)
		}
		return out, nil
	case nil:
		return nil, errors.New("empty pixel data")
	default:
		return nil, fmt.Errorf("unexpected pixel data value %T", v)
	}
	if err != nil || !swap16 {
		return raw, err
	}
	swapped := make([]byte, len(raw))
	for i := 0; i+1 < len(raw); i += 2 {
		swapped[i], swapped[i+1] = raw[i+1], raw[i]
	}
	return swapped, nil
}

func singleFragment(fragments [][]byte) ([]byte, error) {
	switch len(fragments) {
	case 0:
		return nil, errors.New("empty pixel data")
	case 1:
		return fragments[0], nil
	}
	return nil, fmt.Errorf("pixel data has %d fragments", len(fragments))
}
