package cmd

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/signalnine/qrscale/internal/config"
)

var (
	cfgFile  string
	logLevel string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "qrscale",
		Short:         "Measure how QR module size affects decode accuracy and latency",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "qrscale.yaml", "config file path")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(newRunCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newSynthCmd())
	root.AddCommand(newServeCmd())
	return root
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid --log-level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
	return nil
}

// loadConfig reads --config. The default path may be absent, in which case
// built-in defaults apply; an explicitly passed path must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit := cmd.Root().PersistentFlags().Changed("config")
	return config.LoadOrDefault(cfgFile, !explicit)
}
