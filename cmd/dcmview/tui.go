package main

import (
	"fmt"
	"os"

	"dcmview/internal/log"
	"dcmview/internal/tui"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newTUICmd(opts *rootOptions) *cobra.Command {
	var watch []string

	cmd := &cobra.Command{
		Use:   "tui [paths...]",
		Short: "Start the terminal viewer",
		Long:  `Start the terminal viewer. Images are drawn with half-block characters.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return fmt.Errorf("tui: requires a terminal (TTY)")
			}
			// the screen belongs to the viewer while it runs
			log.Configure(append(opts.logOpts, log.WithoutStdout())...)
			return tui.Run(opts.cfg, args, opts.watchDirs(watch))
		},
	}

	cmd.Flags().StringSliceVarP(&watch, "watch", "w", nil, "directory to watch for new files (repeatable)")
	return cmd
}
