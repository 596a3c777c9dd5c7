package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/segmentlab/cmd/autolabel"
	"github.com/tphakala/segmentlab/cmd/export"
	"github.com/tphakala/segmentlab/cmd/jobs"
	"github.com/tphakala/segmentlab/cmd/labels"
	"github.com/tphakala/segmentlab/cmd/process"
	"github.com/tphakala/segmentlab/cmd/serve"
	"github.com/tphakala/segmentlab/cmd/train"
	"github.com/tphakala/segmentlab/cmd/version"
	"github.com/tphakala/segmentlab/internal/buildinfo"
	"github.com/tphakala/segmentlab/internal/conf"
	"github.com/tphakala/segmentlab/internal/errors"
	"github.com/tphakala/segmentlab/internal/logger"
)

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates the root command. settings is filled in by the
// persistent pre-run hook, so subcommands must only read it from RunE.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "segmentlab",
		Short:         "Segment, label and train on audio recordings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search standard locations)")
	if err := setupFlags(rootCmd); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "error setting up flags: %v\n", err)
	}

	versionCmd := version.Command()
	rootCmd.AddCommand(
		serve.Command(settings),
		process.Command(settings),
		train.Command(settings),
		autolabel.Command(settings),
		jobs.Command(settings),
		labels.Command(settings),
		export.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version works without a config file
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings, configFile)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return finalize(settings)
	}

	return rootCmd
}

// initialize loads the configuration and sets up logging and telemetry
// before any subcommand runs.
func initialize(settings *conf.Settings, configFile string) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	logCfg := settings.Main.Log
	if settings.Debug {
		logCfg.DefaultLevel = "debug"
		if logCfg.Console != nil {
			console := *logCfg.Console
			console.Level = "debug"
			logCfg.Console = &console
		}
	}
	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Telemetry.Enabled && settings.Telemetry.DSN != "" {
		if err := errors.InitSentry(settings.Telemetry.DSN, buildinfo.Current().Release()); err != nil {
			central.Module("main").Warn("error telemetry disabled", logger.Error(err))
		}
	}
	return nil
}

func finalize(settings *conf.Settings) error {
	if settings.Telemetry.Enabled {
		errors.FlushSentry(telemetryFlushTimeout)
	}
	return logger.Global().Close()
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command) error {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
