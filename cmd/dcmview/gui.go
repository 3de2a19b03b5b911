package main

import (
	"errors"

	"dcmview/internal/gui"

	"github.com/spf13/cobra"
)

func newGUICmd(opts *rootOptions) *cobra.Command {
	var watch []string

	cmd := &cobra.Command{
		Use:   "gui [paths...]",
		Short: "Launch the desktop viewer",
		Long: `Launch the desktop viewer. Files and directories given as arguments
are loaded in order; directories are expanded with the configured patterns.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !gui.IsGUIAvailable() {
				return errors.New("GUI not available in this build, use the tui command")
			}
			return gui.StartGUI(opts.cfg, opts.configPath(), args, opts.watchDirs(watch))
		},
	}

	cmd.Flags().StringSliceVarP(&watch, "watch", "w", nil, "directory to watch for new files (repeatable)")
	return cmd
}
