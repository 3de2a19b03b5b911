//go:build nogui

package gui

import (
	"fmt"

	"dcmview/internal/config"
)

// StartGUI is a stub implementation for builds with GUI disabled
func StartGUI(cfg *config.Config, cfgPath string, paths, watchDirs []string) error {
	fmt.Println("GUI is disabled in this build. Use the tui or inspect commands.")
	return fmt.Errorf("GUI not available in this build")
}

// IsGUIAvailable returns whether the GUI is available in this build
func IsGUIAvailable() bool {
	return false
}
