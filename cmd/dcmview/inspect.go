package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"dcmview/internal/config"
	"dcmview/internal/errors"
	"dcmview/internal/log"
	"dcmview/internal/session"
	"dcmview/internal/viewer"
	"dcmview/internal/watch"
	"dcmview/pkg/types"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [paths...]",
		Short: "Decode files without a display and report the results",
		Long: `Load the given files into a headless viewer, display each one in turn
and print its dimensions, format and decoded size, followed by the cache state.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Configure(append([]log.Option{log.WithOutput(os.Stderr)}, opts.logOpts...)...)
			return runInspect(cmd.OutOrStdout(), opts.cfg, args)
		},
	}
}

func runInspect(out io.Writer, cfg *config.Config, args []string) error {
	matcher, err := watch.NewMatcherFromConfig(cfg)
	if err != nil {
		return err
	}
	paths, err := watch.Expand(args, matcher)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no DICOM files found")
	}

	var (
		mu   sync.Mutex
		last session.Event
	)
	sess := session.New(cfg, viewer.NewRecorder(), session.WithListener(func(ev session.Event) {
		mu.Lock()
		last = ev
		mu.Unlock()
	}))
	defer sess.Close()

	handles := make([]*types.FileHandle, len(paths))
	for i, p := range paths {
		handles[i] = types.NewFileHandle(p)
	}
	if _, err := sess.AddFiles(handles); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFILE\tSIZE\tFORMAT\tMODALITY\tDECODED")

	failed := 0
	for i, h := range handles {
		if i > 0 {
			if err := sess.Select(i); err != nil {
				return err
			}
		}
		sess.Wait()

		mu.Lock()
		ev := last
		mu.Unlock()

		if ev.Kind == session.DecodeFailed || ev.Image == nil {
			failed++
			fmt.Fprintf(w, "%d\t%s\t-\t-\t-\terror: %v\n", i+1, h.Name, ev.Err)
			continue
		}
		img := ev.Image
		fmt.Fprintf(w, "%d\t%s\t%dx%d\t%s/%d\t%s\t%s\n",
			i+1, h.Name, img.Width, img.Height, img.PixelFormat, img.BitsAllocated,
			orDash(img.Modality), humanize.IBytes(uint64(img.SizeBytes)))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d decoded, %d failed | %s\n", len(handles)-failed, failed, sess.CacheInfo())
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be decoded", failed, len(handles))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
