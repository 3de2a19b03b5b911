package tui

import (
	"context"
	"fmt"
	"os"
	"sync"

	"dcmview/internal/config"
	"dcmview/internal/errors"
	"dcmview/internal/log"
	"dcmview/internal/session"
	"dcmview/internal/tui/common"
	"dcmview/internal/tui/components"
	"dcmview/internal/tui/messages"
	"dcmview/internal/tui/styles"
	"dcmview/internal/tui/views"
	"dcmview/internal/watch"
	"dcmview/pkg/types"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultCols = 48
	defaultRows = 18

	// cells taken by the sidebar, borders and the lines around the viewport
	chromeCols = 36
	chromeRows = 14
)

// Model is the bubbletea model of the terminal viewer
type Model struct {
	sess    *session.Session
	matcher *watch.Matcher
	surface *Terminal

	events    chan session.Event
	done      chan struct{}
	closeOnce sync.Once

	mode     common.Mode
	keys     keyMap
	help     help.Model
	status   *components.StatusBar
	picker   filepicker.Model
	showHelp bool
	info     string
}

// Option customizes a Model
type Option func(*Model)

// WithPickerDir sets where the add-file picker starts
func WithPickerDir(dir string) Option {
	return func(m *Model) {
		m.picker.CurrentDirectory = dir
	}
}

// New creates the terminal viewer and its session. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) (*Model, error) {
	if cfg == nil {
		cfg = config.New()
	}
	matcher, err := watch.NewMatcherFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	styles.Use(cfg.Theme.Name)

	m := &Model{
		matcher: matcher,
		surface: NewTerminal(defaultCols, defaultRows),
		events:  make(chan session.Event, 16),
		done:    make(chan struct{}),
		mode:    common.Normal,
		keys:    defaultKeyMap(),
		help:    help.New(),
		status:  components.NewStatusBar(),
		picker:  filepicker.New(),
	}
	m.picker.AutoHeight = false
	m.picker.Height = 10
	m.picker.ShowPermissions = false
	if wd, err := os.Getwd(); err == nil {
		m.picker.CurrentDirectory = wd
	}
	for _, opt := range opts {
		opt(m)
	}

	m.sess = session.New(cfg, m.surface, session.WithListener(m.forward))
	m.refresh()
	return m, nil
}

// forward hands pipeline events to the update loop. It runs on pipeline
// goroutines and gives up once the model is closed.
func (m *Model) forward(ev session.Event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	events, done := m.events, m.done
	return func() tea.Msg {
		select {
		case ev := <-events:
			return messages.PipelineMsg{Event: ev}
		case <-done:
			return nil
		}
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForEvent()}
	if m.status.Loading() {
		cmds = append(cmds, m.status.Tick())
	}
	return tea.Batch(cmds...)
}

// View implements tea.Model
func (m *Model) View() string {
	return views.RenderMainView(m)
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.surface.SetSize(msg.Width-chromeCols, msg.Height-chromeRows)
		m.help.Width = msg.Width
	case messages.PipelineMsg:
		m.handleEvent(msg.Event)
		cmds = append(cmds, m.waitForEvent())
	case messages.WatchedFileMsg:
		cmds = append(cmds, m.addPaths([]string{msg.Path}))
	case messages.FilesAddedMsg:
		log.Debugf("added %d file(s)", msg.Count)
	case messages.ErrorMsg:
		m.status.SetError(msg.Err)
	case tea.KeyMsg:
		if m.mode == common.Picking {
			cmds = append(cmds, m.handlePickerKeys(msg))
		} else {
			cmds = append(cmds, m.handleNormalKeys(msg))
		}
		m.refresh()
		return m, tea.Batch(cmds...)
	}

	if m.mode == common.Picking {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, m.status.Update(msg))
	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m *Model) handleNormalKeys(msg tea.KeyMsg) tea.Cmd {
	cur, ok := m.sess.Current()
	n := m.sess.Len()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, m.keys.Add):
		m.mode = common.Picking
		return m.picker.Init()
	case !ok:
		// the remaining keys need a selection
	case key.Matches(msg, m.keys.Prev):
		if cur > 0 {
			return m.selectIndex(cur - 1)
		}
	case key.Matches(msg, m.keys.Next):
		if cur < n-1 {
			return m.selectIndex(cur + 1)
		}
	case key.Matches(msg, m.keys.First):
		if cur != 0 {
			return m.selectIndex(0)
		}
	case key.Matches(msg, m.keys.Last):
		if cur != n-1 {
			return m.selectIndex(n - 1)
		}
	case key.Matches(msg, m.keys.Delete):
		return m.deleteIndex(cur)
	}
	return nil
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.String() == "ctrl+c":
		return tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		m.mode = common.Normal
		return nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.mode = common.Normal
		return tea.Batch(cmd, m.addPaths([]string{path}))
	}
	return cmd
}

func (m *Model) selectIndex(i int) tea.Cmd {
	if err := m.sess.Select(i); err != nil {
		m.status.SetError(err)
		return nil
	}
	return m.status.SetLoading(true)
}

func (m *Model) deleteIndex(i int) tea.Cmd {
	if err := m.sess.Delete(i); err != nil {
		m.status.SetError(err)
		return nil
	}
	m.status.SetError(nil)
	if m.sess.Len() == 0 {
		m.info = ""
		m.status.SetLoading(false)
		return nil
	}
	return m.status.SetLoading(true)
}

// AddPaths expands paths (directories by the configured patterns) and
// appends the files to the list
func (m *Model) AddPaths(paths []string) error {
	_, started, err := m.add(paths)
	if started {
		m.status.SetLoading(true)
	}
	m.refresh()
	return err
}

func (m *Model) addPaths(paths []string) tea.Cmd {
	n, started, err := m.add(paths)
	if err != nil {
		m.status.SetError(err)
		return nil
	}
	cmds := []tea.Cmd{func() tea.Msg { return messages.FilesAddedMsg{Count: n} }}
	if started {
		cmds = append(cmds, m.status.SetLoading(true))
	}
	return tea.Batch(cmds...)
}

// add returns how many files were appended and whether that started a
// display pipeline
func (m *Model) add(paths []string) (int, bool, error) {
	expanded, err := watch.Expand(paths, m.matcher)
	if err != nil {
		return 0, false, err
	}
	if len(expanded) == 0 {
		return 0, false, errors.New("no DICOM files found")
	}
	handles := make([]*types.FileHandle, len(expanded))
	for i, p := range expanded {
		handles[i] = types.NewFileHandle(p)
	}
	wasEmpty := m.sess.Len() == 0
	if _, err := m.sess.AddFiles(handles); err != nil {
		return 0, false, err
	}
	m.status.SetError(nil)
	return len(handles), wasEmpty, nil
}

func (m *Model) handleEvent(ev session.Event) {
	m.status.SetLoading(false)
	switch ev.Kind {
	case session.Displayed:
		m.info = ev.Image.Summary()
		m.status.SetError(nil)
	case session.DecodeFailed:
		m.status.SetError(fmt.Errorf("could not decode %s: %w", m.nameOf(ev.ID), ev.Err))
	}
}

func (m *Model) nameOf(id types.ImageID) string {
	if h, ok := m.sess.Registry.Lookup(id); ok {
		return h.Name
	}
	return string(id)
}

func (m *Model) refresh() {
	m.status.SetText(m.sess.StatusLine())
}

// Close stops event delivery and tears the session down. Safe to call twice.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.sess.Close()
	})
}

// Session exposes the underlying viewer session
func (m *Model) Session() *session.Session {
	return m.sess
}

// Getters

func (m *Model) Files() []common.FileEntry {
	sizes := make(map[types.ImageID]int64)
	for _, e := range m.sess.Cache.Entries() {
		sizes[e.ID] = e.SizeBytes
	}
	items := m.sess.Items()
	files := make([]common.FileEntry, len(items))
	for i, it := range items {
		files[i] = common.FileEntry{Name: it.Handle.Name, ID: it.ID, Size: sizes[it.ID]}
	}
	return files
}

func (m *Model) Cursor() (int, bool) {
	return m.sess.Current()
}

func (m *Model) ShowHelp() bool {
	return m.showHelp
}

func (m *Model) Mode() common.Mode {
	return m.mode
}

func (m *Model) Picture() string {
	return m.surface.View()
}

func (m *Model) Info() string {
	if _, ok := m.sess.Current(); !ok {
		return ""
	}
	return m.info
}

func (m *Model) Status() string {
	return m.status.View()
}

func (m *Model) HelpView() string {
	return m.help.View(m.keys)
}

func (m *Model) PickerView() string {
	return m.picker.View()
}

// Run starts the terminal viewer on paths and blocks until the user quits.
// Files appearing in watchDirs are appended while it runs.
func Run(cfg *config.Config, paths, watchDirs []string, opts ...tea.ProgramOption) error {
	m, err := New(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if len(paths) > 0 {
		if err := m.AddPaths(paths); err != nil {
			return err
		}
	}

	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	if len(watchDirs) > 0 {
		w, err := watch.New(m.matcher)
		if err != nil {
			return err
		}
		for _, dir := range watchDirs {
			if err := w.AddDirectory(dir); err != nil {
				w.Stop()
				return err
			}
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Follow(ctx, func(ev watch.FileEvent) {
			p.Send(messages.WatchedFileMsg{Path: ev.Path})
		})
	}

	_, err = p.Run()
	return err
}
