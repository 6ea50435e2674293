// Command signal-reset clears the held trading signal once a day at a fixed
// time and keeps the next wake-up armed across restarts and reboots.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/signal-reset/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliOptions collects flag values. Only flags the user set override the
// loaded config.
type cliOptions struct {
	configPath string
	envFile    string
	flags      config.Config
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{flags: config.Default()}

	root := &cobra.Command{
		Use:          "signal-reset",
		Short:        "Daily reset daemon for the held trading signal",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, os.Stderr)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, logger)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", config.DefaultPath, "YAML config file (skipped if missing)")
	pf.StringVar(&opts.envFile, "env-file", ".env", ".env file with SIGNAL_RESET_* variables (skipped if missing)")
	pf.StringVar(&opts.flags.HTTP, "http", opts.flags.HTTP, "HTTP status address (empty to disable)")

	f := root.Flags()
	f.StringVar(&opts.flags.FireTime, "fire-time", opts.flags.FireTime, "Daily reset time of day, HH:MM[:SS]")
	f.StringVar(&opts.flags.Timezone, "timezone", opts.flags.Timezone, `IANA zone the fire time is in ("Local" for the host zone)`)
	f.StringVar(&opts.flags.DB, "db", opts.flags.DB, "SQLite database path")
	f.StringVar(&opts.flags.Broker, "broker", opts.flags.Broker, "MQTT broker address")
	f.IntVar(&opts.flags.ArmPin, "arm-pin", opts.flags.ArmPin, "BCM pin of the arm switch (-1: always permitted)")
	f.StringVar(&opts.flags.ArmChip, "arm-chip", opts.flags.ArmChip, "GPIO chip of the arm switch")
	f.BoolVar(&opts.flags.ArmActiveLow, "arm-active-low", opts.flags.ArmActiveLow, "Arm switch reads low when permitted")
	f.StringVar(&opts.flags.BootIDPath, "boot-id-path", opts.flags.BootIDPath, "Kernel boot id file")
	f.StringVar(&opts.flags.LogLevel, "log-level", opts.flags.LogLevel, "Log level (debug, info, warn, error)")

	root.AddCommand(newStatusCmd(opts), newScheduleCmd(opts))
	return root
}

// load resolves the effective config: file, .env, environment, then flags.
func (o *cliOptions) load(fs *pflag.FlagSet) (config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(afero.NewOsFs(), o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	applyFlags(fs, &cfg, o.flags)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// applyFlags copies every flag the user set from flags into cfg.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config, flags config.Config) {
	overrides := map[string]func(){
		"fire-time":      func() { cfg.FireTime = flags.FireTime },
		"timezone":       func() { cfg.Timezone = flags.Timezone },
		"db":             func() { cfg.DB = flags.DB },
		"broker":         func() { cfg.Broker = flags.Broker },
		"http":           func() { cfg.HTTP = flags.HTTP },
		"arm-pin":        func() { cfg.ArmPin = flags.ArmPin },
		"arm-chip":       func() { cfg.ArmChip = flags.ArmChip },
		"arm-active-low": func() { cfg.ArmActiveLow = flags.ArmActiveLow },
		"boot-id-path":   func() { cfg.BootIDPath = flags.BootIDPath },
		"log-level":      func() { cfg.LogLevel = flags.LogLevel },
	}
	for name, apply := range overrides {
		if f := fs.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
}

func newLogger(cfg config.Config, w io.Writer) (*log.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
		Prefix:          "signal-reset",
	}), nil
}
