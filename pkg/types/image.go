package types

import (
	"fmt"
	"image"
)

// ImageID identifies a registered FileHandle. The format is opaque to callers.
type ImageID string

// DecodedImage is a decoded raster plus the metadata needed to display and
// account for it. It is never mutated after the decoder returns it, so the
// cache and the viewer may share the same pointer.
type DecodedImage struct {
	ID    ImageID
	Name  string
	Image image.Image

	Width         int
	Height        int
	Frames        int
	BitsAllocated int
	PixelFormat   string // photometric interpretation, e.g. MONOCHROME2
	Modality      string

	WindowCenter float64
	WindowWidth  float64

	// SizeBytes is the approximate in-memory size used for cache accounting
	SizeBytes int64
}

// String returns a short description used in logs and the inspect command
func (d *DecodedImage) String() string {
	return fmt.Sprintf("%s %dx%d %s/%d bits, %d frame(s), %d bytes",
		d.ID, d.Width, d.Height, d.PixelFormat, d.BitsAllocated, d.Frames, d.SizeBytes)
}

// Summary is the one-line description shown under the viewport
func (d *DecodedImage) Summary() string {
	if d == nil {
		return ""
	}
	s := fmt.Sprintf("%s  %dx%d  %s", d.Name, d.Width, d.Height, d.PixelFormat)
	if d.Modality != "" {
		s += "  " + d.Modality
	}
	if d.WindowWidth > 0 {
		s += fmt.Sprintf("  W %.0f / L %.0f", d.WindowWidth, d.WindowCenter)
	}
	return s
}
