package views

import (
	"strings"

	"dcmview/internal/tui/common"
	"dcmview/internal/tui/components"
	"dcmview/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const sidebarWidth = 32

func RenderMainView(m common.ModelReader) string {
	var sb strings.Builder

	sb.WriteString(styles.Theme.Title.Render("DICOM Viewer"))
	sb.WriteString("\n")

	if m.Mode() == common.Picking {
		sb.WriteString(styles.Theme.Help.Render("Pick a file to add (esc to cancel)"))
		sb.WriteString("\n")
		sb.WriteString(m.PickerView())
	} else {
		sb.WriteString(renderBody(m))
	}

	sb.WriteString("\n" + m.Status())
	sb.WriteString("\n" + m.HelpView())

	return styles.Theme.App.Render(sb.String())
}

func renderBody(m common.ModelReader) string {
	files := m.Files()
	cur, ok := m.Cursor()

	list := components.NewFileList(listHeight)
	list.SetFiles(files)
	list.SetCursor(cur, ok)
	sidebar := lipgloss.NewStyle().Width(sidebarWidth).Render(list.View())

	var center strings.Builder
	center.WriteString(styles.Theme.Viewport.Render(m.Picture()))
	center.WriteString("\n")
	center.WriteString(components.Slider(cur, len(files), sliderWidth))
	if info := m.Info(); info != "" {
		center.WriteString("\n" + info)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, center.String())
}

const (
	listHeight  = 16
	sliderWidth = 24
)
