package common

import "dcmview/pkg/types"

type Mode int

const (
	Normal Mode = iota
	Picking
)

// ModelReader defines the interface that views use to read model state
type ModelReader interface {
	Files() []FileEntry
	Cursor() (int, bool)
	ShowHelp() bool
	Mode() Mode
	Picture() string
	Info() string
	Status() string
	HelpView() string
	PickerView() string
}

// FileEntry is one loaded file as shown in the list
type FileEntry struct {
	Name string
	ID   types.ImageID
	Size int64
}
