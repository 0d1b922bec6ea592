package main

import (
	"codeberg.org/mutker/kerntune/internal/config"
	"codeberg.org/mutker/kerntune/internal/logger"
	"github.com/spf13/cobra"
)

var cfg *config.Config

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kerntune",
		Short:         "Workload-aware kernel parameter tuning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			logger.Init(cfg.LogLevel, logger.IsService())
			logger.Debug().Msg("Config loaded")

			return nil
		},
	}

	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(),
		newCollectCmd(),
		newRecommendCmd(),
		newEvaluateCmd(),
		newApplyCmd(),
	)

	return root
}
