package main

import (
	"os"

	"github.com/mdobak/go-xerrors"
	"github.com/spf13/cobra"

	"github.com/0xlemi/tunecoach/internal/config"
	"github.com/0xlemi/tunecoach/internal/engine"
	"github.com/0xlemi/tunecoach/internal/logging"
	"github.com/0xlemi/tunecoach/internal/pitch"
)

var (
	envFiles []string
	logLevel string
	workers  int
	scorer   string
	cfg      config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Error(xerrors.New(err), "tunecoach failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tunecoach",
		Short:         "Pitch, tuning and chord analysis for practising musicians",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.Load(envFiles...); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("scorer") {
				cfg.ScorerPath = scorer
			}
			logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
			return cfg.Validate()
		},
	}

	flags := root.PersistentFlags()
	flags.StringSliceVar(&envFiles, "env", nil, ".env files to load (default ./.env)")
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flags.IntVar(&workers, "workers", 0, "chunks analyzed in parallel (default GOMAXPROCS)")
	flags.StringVar(&scorer, "scorer", "", "optional linear scorer weights (JSON)")

	root.AddCommand(
		newServeCmd(),
		newLiveCmd(),
		newDetectCmd(),
		newTuneCmd(),
		newChordCmd(),
		newSessionCmd(),
		newNotesCmd(),
	)
	return root
}

// newEngine builds the engine from the loaded configuration
func newEngine() (*engine.Engine, error) {
	opts := []engine.Option{engine.WithWorkers(cfg.Workers)}
	if cfg.ScorerPath != "" {
		s, err := pitch.LoadLinearScorer(cfg.ScorerPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithScorer(s))
		logging.Info("scorer loaded", logging.Fields{"path": cfg.ScorerPath, "weights": len(s.Weights)})
	}
	return engine.New(opts...), nil
}
