package main

import (
	"fmt"

	"dcmview/internal/config"
	"dcmview/internal/log"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// rootOptions carries the persistent flags and the loaded config to subcommands
type rootOptions struct {
	cfgFile   string
	debug     bool
	cacheSize string

	cfg     *config.Config
	logOpts []log.Option
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "dcmview",
		Short: "A DICOM image viewer",
		Long: `dcmview loads DICOM files, shows one at a time and lets you step
through, add and remove them. Decoded images are kept in a bounded cache.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.config/dcmview/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.cacheSize, "cache-size", "", "image cache budget, e.g. 200MiB (overrides the config)")

	rootCmd.AddCommand(newGUICmd(opts))
	rootCmd.AddCommand(newTUICmd(opts))
	rootCmd.AddCommand(newInspectCmd(opts))

	return rootCmd
}

func (o *rootOptions) load() error {
	var err error
	if o.cfgFile != "" {
		o.cfg, err = config.LoadConfigFile(o.cfgFile)
		if err != nil {
			return err
		}
	} else {
		o.cfg, err = config.LoadConfig()
		if err != nil {
			log.LogWithError(err).Warn("could not load config, using defaults")
			o.cfg = config.New()
		}
	}

	if o.cacheSize != "" {
		n, err := humanize.ParseBytes(o.cacheSize)
		if err != nil || n == 0 {
			return fmt.Errorf("invalid --cache-size %q", o.cacheSize)
		}
		o.cfg.Cache.MaxBytes = int64(n)
		if err := o.cfg.Validate(); err != nil {
			return err
		}
	}

	log.SetDebug(o.debug || o.cfg.Logging.Debug)
	o.logOpts = nil
	if o.cfg.Logging.JSON {
		o.logOpts = append(o.logOpts, log.WithJSON())
	}
	if o.cfg.Logging.File != "" {
		o.logOpts = append(o.logOpts, log.WithFile(o.cfg.Logging.File))
	}
	log.Configure(o.logOpts...)
	return nil
}

// configPath is where settings edited in the GUI are saved
func (o *rootOptions) configPath() string {
	if o.cfgFile != "" {
		return o.cfgFile
	}
	path, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	return path
}

// watchDirs merges --watch flags with the configured directories
func (o *rootOptions) watchDirs(flags []string) []string {
	dirs := append([]string{}, o.cfg.Watch.Directories...)
	return append(dirs, flags...)
}
