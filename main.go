package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codeberg.org/miketth/pluggedkbd/pkg/control"
	"codeberg.org/miketth/pluggedkbd/pkg/settings"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalf("error: %+v", err)
	}
}

type globalFlags struct {
	configFile string
	socket     string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "pluggedkbd",
		Short: "Switch the keyboard layout when external keyboards come and go",
		Long: `pluggedkbd watches for keyboards being plugged in and out and activates the
input source associated with the keyboard in use. Without a subcommand it
runs the daemon.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/pluggedkbd/config.toml)")
	root.PersistentFlags().StringVar(&flags.socket, "socket", control.DefaultSocketPath(), "control socket path")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the daemon",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemon(cmd, flags)
			},
		},
		newListCmd(flags),
		newToggleCmd(flags),
		newAssociateCmd(flags),
		newRulesCmd(flags),
	)

	return root
}

// loadSettings builds the logger and reads the configuration. The logger
// level follows debug-messages.
func loadSettings(cmd *cobra.Command, flags *globalFlags) (*settings.Manager, *zap.SugaredLogger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	log, err := newLogger(level)
	if err != nil {
		return nil, nil, level, fmt.Errorf("create logger: %w", err)
	}

	path := flags.configFile
	if path == "" {
		path, err = settings.DefaultConfigFile()
		if err != nil {
			return nil, nil, level, err
		}
	}

	m, err := settings.New(path, log.Named("settings"))
	if err != nil {
		return nil, nil, level, fmt.Errorf("load settings: %w", err)
	}
	if f := cmd.Flags().Lookup("debug"); f != nil && f.Changed {
		if err := m.BindFlag(settings.KeyDebugMessages, f); err != nil {
			return nil, nil, level, err
		}
	}

	level.SetLevel(levelFor(m.Get().DebugMessages))
	return m, log, level, nil
}

func levelFor(debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func newLogger(level zap.AtomicLevel) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()

	loggerConfig.OutputPaths = []string{"stdout"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	loggerConfig.Level = level

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}
