package messages

import "dcmview/internal/session"

type ErrorMsg struct {
	Err error
}

// PipelineMsg carries a display pipeline outcome into the update loop
type PipelineMsg struct {
	Event session.Event
}

// FilesAddedMsg reports paths appended to the list
type FilesAddedMsg struct {
	Count int
}

// WatchedFileMsg is sent when a watched directory gains a file
type WatchedFileMsg struct {
	Path string
}
