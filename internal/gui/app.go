//go:build !nogui

package gui

import (
	"context"
	"fmt"
	"image/color"
	"sync"

	"dcmview/internal/config"
	"dcmview/internal/log"
	"dcmview/internal/session"
	"dcmview/internal/watch"
	"dcmview/pkg/types"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// App is the desktop viewer
type App struct {
	fyneApp    fyne.App
	mainWindow fyne.Window
	cfg        *config.Config
	cfgPath    string
	matcher    *watch.Matcher
	sess       *session.Session
	viewport   *Viewport

	fileList    *widget.List
	slider      *widget.Slider
	statusLabel *widget.Label
	imageLabel  *widget.Label

	mu       sync.Mutex
	watcher  *watch.Watcher
	stopWait context.CancelFunc
	lastInfo string

	accentColor color.NRGBA
}

// Option customizes an App
type Option func(*App)

// WithFyneApp runs the viewer inside an existing fyne application, such as
// the one returned by fyne's test package
func WithFyneApp(fa fyne.App) Option {
	return func(a *App) {
		a.fyneApp = fa
	}
}

// WithConfigPath sets where the settings dialog saves the configuration
func WithConfigPath(path string) Option {
	return func(a *App) {
		a.cfgPath = path
	}
}

// NewApp creates the viewer window and its session
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.New()
	}
	matcher, err := watch.NewMatcherFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:         cfg,
		matcher:     matcher,
		viewport:    NewViewport(cfg.Viewer.Width, cfg.Viewer.Height),
		accentColor: color.NRGBA{R: 255, G: 165, B: 0, A: 255},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fyneApp == nil {
		a.fyneApp = app.NewWithID("io.github.dcmview")
	}

	a.sess = session.New(cfg, a.viewport, session.WithListener(a.onEvent))
	a.mainWindow = a.fyneApp.NewWindow("DICOM Viewer")
	a.setupMainWindow()
	return a, nil
}

// Session exposes the underlying viewer session
func (a *App) Session() *session.Session {
	return a.sess
}

// Viewport returns the drawing surface
func (a *App) Viewport() *Viewport {
	return a.viewport
}

// GetMainWindow returns the main window instance
func (a *App) GetMainWindow() fyne.Window {
	return a.mainWindow
}

// Run shows the window and blocks until it is closed
func (a *App) Run() {
	a.mainWindow.Show()
	a.fyneApp.Run()
	a.Close()
}

// Close stops watching and tears the session down
func (a *App) Close() {
	a.mu.Lock()
	w, cancel := a.watcher, a.stopWait
	a.watcher, a.stopWait = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if w != nil {
		w.Stop()
	}
	a.sess.Close()
}

func (a *App) setupMainWindow() {
	a.mainWindow.Resize(fyne.NewSize(
		float32(a.cfg.Viewer.Width)+320,
		float32(a.cfg.Viewer.Height)+120,
	))

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.FileImageIcon(), a.showAddFiles),
		widget.NewToolbarAction(theme.FolderOpenIcon(), a.showAddFolder),
		widget.NewToolbarAction(theme.DeleteIcon(), a.DeleteCurrent),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.SettingsIcon(), a.showSettings),
		widget.NewToolbarSpacer(),
		widget.NewToolbarAction(theme.HelpIcon(), func() {
			dialog.ShowInformation("About",
				"Open DICOM files or folders, step through them with the\n"+
					"list or the slider, and delete entries you no longer need.",
				a.mainWindow)
		}),
	)

	a.fileList = widget.NewList(
		func() int {
			return a.sess.Len()
		},
		func() fyne.CanvasObject {
			return container.NewHBox(
				widget.NewIcon(theme.FileImageIcon()),
				widget.NewLabel("Template file name.dcm"),
			)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			items := a.sess.Items()
			if id < 0 || id >= len(items) {
				return
			}
			obj.(*fyne.Container).Objects[1].(*widget.Label).SetText(items[id].Handle.Name)
		},
	)
	a.fileList.OnSelected = func(id widget.ListItemID) {
		a.SelectIndex(id)
	}

	a.slider = widget.NewSlider(0, 1)
	a.slider.Step = 1
	a.slider.Disable()
	a.slider.OnChanged = func(v float64) {
		a.SelectIndex(int(v))
	}

	a.statusLabel = widget.NewLabel("")
	a.imageLabel = widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Monospace: true})
	a.refresh()

	sidebar := container.NewBorder(
		widget.NewLabelWithStyle("Files", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		nil, nil, nil,
		container.NewScroll(a.fileList),
	)
	center := container.NewBorder(nil, container.NewVBox(a.slider, a.imageLabel), nil, nil, a.viewport.CanvasObject())
	split := container.NewHSplit(sidebar, center)
	split.Offset = 0.25

	content := container.NewBorder(
		container.NewVBox(toolbar, canvas.NewLine(a.accentColor)),
		container.NewHBox(a.statusLabel, layout.NewSpacer()),
		nil,
		nil,
		split,
	)
	a.mainWindow.SetContent(content)
}

// AddPaths expands paths (directories by the configured patterns) and adds
// the resulting files in order
func (a *App) AddPaths(paths []string) error {
	expanded, err := watch.Expand(paths, a.matcher)
	if err != nil {
		return err
	}
	if len(expanded) == 0 {
		a.ShowInfo("No DICOM files found.")
		return nil
	}
	handles := make([]*types.FileHandle, len(expanded))
	for i, p := range expanded {
		handles[i] = types.NewFileHandle(p)
	}
	if _, err := a.sess.AddFiles(handles); err != nil {
		return err
	}
	a.refresh()
	return nil
}

// SelectIndex moves the selection, ignoring requests for the current index
func (a *App) SelectIndex(i int) {
	if cur, ok := a.sess.Current(); ok && cur == i {
		return
	}
	if err := a.sess.Select(i); err != nil {
		a.ShowError("Select failed", err)
		return
	}
	a.refresh()
}

// DeleteCurrent removes the selected file from the list
func (a *App) DeleteCurrent() {
	cur, ok := a.sess.Current()
	if !ok {
		a.ShowInfo("Nothing to delete.")
		return
	}
	if err := a.sess.Delete(cur); err != nil {
		a.ShowError("Delete failed", err)
		return
	}
	a.refresh()
}

// StartWatching adds files that appear in dirs
func (a *App) StartWatching(dirs []string) error {
	if len(dirs) == 0 {
		return nil
	}
	w, err := watch.New(a.matcher)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := w.AddDirectory(dir); err != nil {
			w.Stop()
			return err
		}
	}
	if err := w.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.watcher, a.stopWait = w, cancel
	a.mu.Unlock()

	go w.Follow(ctx, func(ev watch.FileEvent) {
		if err := a.AddPaths([]string{ev.Path}); err != nil {
			log.LogWithError(err).Warn("could not add watched file")
		}
	})
	return nil
}

func (a *App) showAddFiles() {
	dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		if err := a.AddPaths([]string{path}); err != nil {
			a.ShowError("Add failed", err)
		}
	}, a.mainWindow)
}

func (a *App) showAddFolder() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil || uri == nil {
			return
		}
		if err := a.AddPaths([]string{uri.Path()}); err != nil {
			a.ShowError("Add failed", err)
		}
	}, a.mainWindow)
}

func (a *App) onEvent(ev session.Event) {
	a.mu.Lock()
	switch ev.Kind {
	case session.Displayed:
		a.lastInfo = ev.Image.Summary()
	case session.DecodeFailed:
		a.lastInfo = fmt.Sprintf("Could not decode %s: %v", ev.ID, ev.Err)
	}
	a.mu.Unlock()
	a.refresh()
}

// refresh brings the list, slider and labels in line with the session
func (a *App) refresh() {
	n := a.sess.Len()
	cur, ok := a.sess.Current()

	if n > 1 {
		a.slider.Max = float64(n - 1)
		a.slider.Enable()
	} else {
		a.slider.Max = 1
		a.slider.Disable()
	}
	if ok {
		a.slider.Value = float64(cur)
	} else {
		a.slider.Value = 0
	}
	a.slider.Refresh()

	a.fileList.Refresh()
	if ok {
		a.fileList.Select(cur)
	} else {
		a.fileList.UnselectAll()
	}

	a.statusLabel.SetText(a.StatusText())
	a.mu.Lock()
	info := a.lastInfo
	if !ok {
		info = ""
	}
	a.mu.Unlock()
	a.imageLabel.SetText(info)
}

// StatusText summarizes the list position and cache usage
func (a *App) StatusText() string {
	return a.sess.StatusLine()
}

// ShowError displays an error dialog
func (a *App) ShowError(title string, err error) {
	if err == nil {
		return
	}
	log.LogWithError(err).Warn(title)
	dialog.ShowError(err, a.mainWindow)
}

// ShowInfo displays an information dialog
func (a *App) ShowInfo(message string) {
	dialog.ShowInformation("Information", message, a.mainWindow)
}
