//go:build !nogui

package gui

import (
	"image"
	"image/color"
	"sync"

	"dcmview/internal/errors"
	"dcmview/pkg/types"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
)

// Viewport is the fyne surface the viewer session draws into
type Viewport struct {
	mu          sync.Mutex
	bound       bool
	image       *canvas.Image
	placeholder *canvas.Text
	content     *fyne.Container
}

// NewViewport creates a viewport with a fixed minimum size
func NewViewport(width, height int) *Viewport {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScalePixels
	img.SetMinSize(fyne.NewSize(float32(width), float32(height)))

	placeholder := canvas.NewText("No images loaded", color.NRGBA{R: 160, G: 160, B: 160, A: 255})
	placeholder.Alignment = fyne.TextAlignCenter

	return &Viewport{
		image:       img,
		placeholder: placeholder,
		content: container.NewStack(
			canvas.NewRectangle(color.Black),
			img,
			container.NewCenter(placeholder),
		),
	}
}

// CanvasObject returns the widget tree to place in a window
func (v *Viewport) CanvasObject() fyne.CanvasObject {
	return v.content
}

func (v *Viewport) Bind() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bound = true
	v.placeholder.Text = "Loading..."
	v.placeholder.Show()
	v.placeholder.Refresh()
	return nil
}

func (v *Viewport) Unbind() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bound = false
	v.image.Image = nil
	v.image.Refresh()
	v.placeholder.Text = "No images loaded"
	v.placeholder.Show()
	v.placeholder.Refresh()
	return nil
}

func (v *Viewport) Draw(img *types.DecodedImage) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.bound {
		return errors.New("viewport is not bound")
	}
	v.image.Image = img.Image
	v.image.Refresh()
	v.placeholder.Hide()
	return nil
}

// Image returns the raster currently shown, nil when blank
func (v *Viewport) Image() image.Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.image.Image
}

// Message returns the placeholder text, empty while an image is visible
func (v *Viewport) Message() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.placeholder.Visible() {
		return ""
	}
	return v.placeholder.Text
}
