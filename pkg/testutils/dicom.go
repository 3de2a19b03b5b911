package testutils

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// Transfer syntax UIDs accepted by BuildDICOM
const (
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    = "1.2.840.10008.1.2.2"
	JPEGBaseline           = "1.2.840.10008.1.2.4.50"
)

// DICOMFile describes a minimal single-frame Part 10 file.
// Pixels are little-endian; BuildDICOM swaps them for big-endian syntaxes.
type DICOMFile struct {
	TransferSyntax string
	Modality       string
	Photometric    string
	Rows           uint16
	Columns        uint16
	BitsAllocated  uint16
	BitsStored     uint16
	Samples        uint16
	Signed         bool
	WindowCenter   string
	WindowWidth    string
	Slope          string
	Intercept      string
	Pixels         []byte
}

// Gray8 returns a rows x columns 8-bit monochrome file with a horizontal ramp
func Gray8(rows, columns int) DICOMFile {
	pixels := make([]byte, rows*columns)
	for i := range pixels {
		pixels[i] = byte(i % columns * 255 / max(columns-1, 1))
	}
	return DICOMFile{
		Modality:      "OT",
		Photometric:   "MONOCHROME2",
		Rows:          uint16(rows),
		Columns:       uint16(columns),
		BitsAllocated: 8,
		Pixels:        pixels,
	}
}

// Gray16 returns a 16-bit monochrome file holding the given samples
func Gray16(rows, columns int, samples []uint16) DICOMFile {
	pixels := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pixels[2*i:], s)
	}
	return DICOMFile{
		Modality:      "CT",
		Photometric:   "MONOCHROME2",
		Rows:          uint16(rows),
		Columns:       uint16(columns),
		BitsAllocated: 16,
		Pixels:        pixels,
	}
}

type element struct {
	tag   uint32
	vr    string
	value []byte
}

// BuildDICOM encodes f as explicit VR Part 10 bytes
func BuildDICOM(f DICOMFile) []byte {
	syntax := f.TransferSyntax
	if syntax == "" {
		syntax = ExplicitVRLittleEndian
	}
	var order binary.ByteOrder = binary.LittleEndian
	if syntax == ExplicitVRBigEndian {
		order = binary.BigEndian
	}

	var meta bytes.Buffer
	writeElement(&meta, binary.LittleEndian, element{0x00020010, "UI", uiValue(syntax)})

	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")
	groupLength := make([]byte, 4)
	binary.LittleEndian.PutUint32(groupLength, uint32(meta.Len()))
	writeElement(&buf, binary.LittleEndian, element{0x00020000, "UL", groupLength})
	buf.Write(meta.Bytes())

	us := func(v uint16) []byte {
		b := make([]byte, 2)
		order.PutUint16(b, v)
		return b
	}
	samples := f.Samples
	if samples == 0 {
		samples = 1
	}
	stored := f.BitsStored
	if stored == 0 {
		stored = f.BitsAllocated
	}
	var pixelRep uint16
	if f.Signed {
		pixelRep = 1
	}

	elems := []element{
		{0x00280002, "US", us(samples)},
		{0x00280010, "US", us(f.Rows)},
		{0x00280011, "US", us(f.Columns)},
		{0x00280100, "US", us(f.BitsAllocated)},
		{0x00280101, "US", us(stored)},
		{0x00280102, "US", us(stored - 1)},
		{0x00280103, "US", us(pixelRep)},
	}
	if f.Modality != "" {
		elems = append(elems, element{0x00080060, "CS", textValue(f.Modality)})
	}
	if f.Photometric != "" {
		elems = append(elems, element{0x00280004, "CS", textValue(f.Photometric)})
	}
	if samples == 3 {
		elems = append(elems, element{0x00280006, "US", us(0)})
	}
	for tag, v := range map[uint32]string{
		0x00281050: f.WindowCenter,
		0x00281051: f.WindowWidth,
		0x00281052: f.Intercept,
		0x00281053: f.Slope,
	} {
		if v != "" {
			elems = append(elems, element{tag, "DS", textValue(v)})
		}
	}

	pixels := f.Pixels
	pixelVR := "OB"
	if f.BitsAllocated == 16 {
		pixelVR = "OW"
		if order == binary.BigEndian {
			pixels = swapPairs(pixels)
		}
	}
	elems = append(elems, element{0x7FE00010, pixelVR, padEven(pixels, 0)})

	sort.Slice(elems, func(i, j int) bool { return elems[i].tag < elems[j].tag })
	for _, e := range elems {
		writeElement(&buf, order, e)
	}
	return buf.Bytes()
}

// WriteDICOM encodes f into dir/name and returns the path
func WriteDICOM(t *testing.T, dir, name string, f DICOMFile) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, BuildDICOM(f), 0644))
	return path
}

func writeElement(buf *bytes.Buffer, order binary.ByteOrder, e element) {
	hdr := make([]byte, 4)
	order.PutUint16(hdr[0:], uint16(e.tag>>16))
	order.PutUint16(hdr[2:], uint16(e.tag))
	buf.Write(hdr)
	buf.WriteString(e.vr)

	switch e.vr {
	case "OB", "OW", "UN", "SQ", "UT":
		buf.Write([]byte{0, 0})
		l := make([]byte, 4)
		order.PutUint32(l, uint32(len(e.value)))
		buf.Write(l)
	default:
		l := make([]byte, 2)
		order.PutUint16(l, uint16(len(e.value)))
		buf.Write(l)
	}
	buf.Write(e.value)
}

func uiValue(s string) []byte {
	return padEven([]byte(s), 0)
}

func textValue(s string) []byte {
	return padEven([]byte(s), ' ')
}

func padEven(b []byte, pad byte) []byte {
	if len(b)%2 == 0 {
		return b
	}
	return append(append([]byte{}, b...), pad)
}

func swapPairs(b []byte) []byte {
	out := make([]byte, len(b))
	for i := 0; i+1 < len(b); i += 2 {
		out[i], out[i+1] = b[i+1], b[i]
	}
	return out
}
