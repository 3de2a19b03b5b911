package tui

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"dcmview/internal/errors"
	"dcmview/pkg/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"
)

// Terminal draws images with upper half block characters, two pixel rows per
// text row. It implements viewer.Surface; Draw runs on pipeline goroutines and
// View on the bubbletea loop.
type Terminal struct {
	mu      sync.Mutex
	cols    int
	rows    int
	bound   bool
	last    *types.DecodedImage
	picture string
}

// NewTerminal creates a surface of cols x rows cells
func NewTerminal(cols, rows int) *Terminal {
	t := &Terminal{}
	t.SetSize(cols, rows)
	return t
}

func (t *Terminal) Bind() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bound = true
	return nil
}

func (t *Terminal) Unbind() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bound = false
	t.last = nil
	t.picture = ""
	return nil
}

func (t *Terminal) Draw(img *types.DecodedImage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.bound {
		return errors.New("terminal surface is not bound")
	}
	t.last = img
	t.picture = halfBlocks(img.Image, t.cols, t.rows)
	return nil
}

// SetSize changes the cell budget and redraws the current image into it
func (t *Terminal) SetSize(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cols, t.rows = cols, rows
	if t.last != nil {
		t.picture = halfBlocks(t.last.Image, cols, rows)
	}
}

// Size returns the cell budget
func (t *Terminal) Size() (cols, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cols, t.rows
}

// View returns the rendered picture, or a placeholder
func (t *Terminal) View() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.picture != "" {
		return t.picture
	}
	msg := "No images loaded"
	if t.bound {
		msg = "Loading..."
	}
	return lipgloss.Place(t.cols, t.rows, lipgloss.Center, lipgloss.Center, msg)
}

// Displayed returns the identifier of the drawn image
func (t *Terminal) Displayed() (types.ImageID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return "", false
	}
	return t.last.ID, true
}

func halfBlocks(img image.Image, cols, rows int) string {
	if img == nil {
		return ""
	}
	fitted := resize.Thumbnail(uint(cols), uint(rows*2), img, resize.Bilinear)
	b := fitted.Bounds()

	var sb strings.Builder
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteString("\n")
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			top := hex(fitted.At(x, y))
			bottom := "#000000"
			if y+1 < b.Max.Y {
				bottom = hex(fitted.At(x, y+1))
			}
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render("▀"))
		}
	}
	return sb.String()
}

func hex(c color.Color) string {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
}
