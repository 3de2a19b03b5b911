package components

import (
	"fmt"
	"strings"

	"dcmview/internal/tui/common"
	"dcmview/internal/tui/styles"

	"github.com/dustin/go-humanize"
)

// FileList renders the loaded files as a window around the current one
type FileList struct {
	files  []common.FileEntry
	cursor int
	active bool
	height int
}

func NewFileList(height int) *FileList {
	if height < 1 {
		height = 1
	}
	return &FileList{height: height}
}

func (fl *FileList) SetFiles(files []common.FileEntry) {
	fl.files = files
}

// SetCursor marks index as current; ok=false means nothing is selected
func (fl *FileList) SetCursor(index int, ok bool) {
	fl.cursor, fl.active = index, ok
}

func (fl *FileList) View() string {
	var s strings.Builder

	s.WriteString(styles.Theme.Title.Render(fmt.Sprintf("Files (%d)", len(fl.files))))
	s.WriteString("\n")

	if len(fl.files) == 0 {
		s.WriteString(styles.Theme.Unselected.Render("No images loaded"))
		s.WriteString("\n")
		return s.String()
	}

	start, end := fl.window()
	if start > 0 {
		s.WriteString(styles.Theme.Unselected.Render(fmt.Sprintf("  ... %d more", start)) + "\n")
	}
	for i := start; i < end; i++ {
		file := fl.files[i]
		style := styles.Theme.Unselected
		cursor := " "
		if fl.active && i == fl.cursor {
			style = styles.Theme.Selected
			cursor = ">"
		}

		details := ""
		if file.Size > 0 {
			details = fmt.Sprintf(" %8s", humanize.IBytes(uint64(file.Size)))
		}
		s.WriteString(fmt.Sprintf("%s %s%s\n", cursor, style.Render(file.Name), style.Render(details)))
	}
	if end < len(fl.files) {
		s.WriteString(styles.Theme.Unselected.Render(fmt.Sprintf("  ... %d more", len(fl.files)-end)) + "\n")
	}

	return s.String()
}

// window returns the visible [start, end) range, keeping the cursor in view
func (fl *FileList) window() (int, int) {
	n := len(fl.files)
	if n <= fl.height {
		return 0, n
	}
	start := fl.cursor - fl.height/2
	if start < 0 {
		start = 0
	}
	if start+fl.height > n {
		start = n - fl.height
	}
	return start, start + fl.height
}

// Slider renders the position of index within n as a horizontal track
func Slider(index, n, width int) string {
	if width < 3 {
		width = 3
	}
	if n <= 0 {
		return styles.Theme.Unselected.Render("[" + strings.Repeat("-", width) + "]")
	}
	pos := 0
	if n > 1 {
		pos = index * (width - 1) / (n - 1)
	}
	track := strings.Repeat("-", pos) + "o" + strings.Repeat("-", width-pos-1)
	return styles.Theme.Slider.Render(fmt.Sprintf("[%s] %d/%d", track, index+1, n))
}
