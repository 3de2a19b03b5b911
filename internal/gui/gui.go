//go:build !nogui

package gui

import (
	"dcmview/internal/config"
)

// StartGUI opens the desktop viewer with paths loaded and blocks until the
// window closes
func StartGUI(cfg *config.Config, cfgPath string, paths, watchDirs []string) error {
	a, err := NewApp(cfg, WithConfigPath(cfgPath))
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		if err := a.AddPaths(paths); err != nil {
			a.Close()
			return err
		}
	}
	if err := a.StartWatching(watchDirs); err != nil {
		a.Close()
		return err
	}
	a.Run()
	return nil
}

// IsGUIAvailable returns whether the GUI is available in this build
func IsGUIAvailable() bool {
	return true
}
