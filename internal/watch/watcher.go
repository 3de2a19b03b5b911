// Package watch finds DICOM files: it expands directory arguments and follows
// watched directories for new arrivals.
package watch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"dcmview/internal/log"

	"github.com/fsnotify/fsnotify"
)

// FileEvent is a new DICOM file seen in a watched directory
type FileEvent struct {
	Path      string
	Info      os.FileInfo
	Timestamp time.Time
	Op        fsnotify.Op
}

// Watcher reports files created in its directories that pass the Matcher.
// Each path is reported once per Watcher.
type Watcher struct {
	directories []string
	matcher     *Matcher

	events   chan FileEvent
	stopChan chan struct{}
	done     chan struct{}

	fsWatcher *fsnotify.Watcher

	mutex   sync.RWMutex
	seen    map[string]bool
	running bool
}

// New creates a watcher filtering by matcher. A nil matcher accepts every file.
func New(matcher *Matcher) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if matcher == nil {
		matcher = MatchAll()
	}

	return &Watcher{
		directories: []string{},
		matcher:     matcher,
		events:      make(chan FileEvent, 64),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		fsWatcher:   fsWatcher,
		seen:        make(map[string]bool),
	}, nil
}

// AddDirectory adds a directory to watch
func (w *Watcher) AddDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s to watcher: %w", dir, err)
	}

	w.mutex.Lock()
	found := false
	for _, existing := range w.directories {
		if existing == dir {
			found = true
			break
		}
	}
	if !found {
		w.directories = append(w.directories, dir)
	}
	w.mutex.Unlock()

	log.LogWithFields(log.F("directory", dir)).Info("watching directory")
	return nil
}

// Events returns the channel of new files. It is closed after Stop.
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Start begins processing filesystem events. A watcher can be started once.
func (w *Watcher) Start() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	select {
	case <-w.done:
		return fmt.Errorf("watcher already stopped")
	default:
	}
	w.running = true

	go w.loop()
	log.Debug("watcher started")
	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.events)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if mod, ok := w.accept(event); ok {
				select {
				case w.events <- mod:
				case <-w.stopChan:
					return
				}
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.LogWithFields(log.F("error", err)).Error("fsnotify watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) accept(event fsnotify.Event) (FileEvent, bool) {
	if !w.matcher.Match(event.Name) {
		return FileEvent{}, false
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		// renamed away or deleted right after creation
		if !os.IsNotExist(err) {
			log.LogWithFields(log.F("file", event.Name), log.F("error", err)).Warn("error stating file")
		}
		return FileEvent{}, false
	}
	if !info.Mode().IsRegular() {
		return FileEvent{}, false
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.seen[event.Name] {
		return FileEvent{}, false
	}
	w.seen[event.Name] = true

	return FileEvent{
		Path:      event.Name,
		Info:      info,
		Timestamp: time.Now(),
		Op:        event.Op,
	}, true
}

// Stop halts the watcher and waits for its event loop to exit
func (w *Watcher) Stop() {
	w.mutex.Lock()
	if !w.running {
		w.mutex.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	w.mutex.Unlock()

	if err := w.fsWatcher.Close(); err != nil {
		log.LogWithFields(log.F("error", err)).Error("error closing fsnotify watcher")
	}
	<-w.done
	log.Debug("watcher stopped")
}

// Follow calls fn for each new file until ctx is done or the watcher stops
func (w *Watcher) Follow(ctx context.Context, fn func(FileEvent)) {
	for {
		select {
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			fn(ev)
		case <-ctx.Done():
			return
		}
	}
}

// IsRunning returns whether the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.running
}

// GetDirectories returns the list of directories being watched
func (w *Watcher) GetDirectories() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	dirsCopy := make([]string, len(w.directories))
	copy(dirsCopy, w.directories)
	return dirsCopy
}
