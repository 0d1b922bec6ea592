package main

import (
	"fmt"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/predict"
	"codeberg.org/mutker/kerntune/internal/recommend"
	"github.com/spf13/cobra"
)

func newRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <label>",
		Short: "Score the parameter grid against the current host and print the best candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := parseLabel(args[0])
			if err != nil {
				return err
			}

			scorer := loadModel("scorer", cfg.Models.Scorer)
			if !scorer.Available() {
				return errors.New().WithData(predict.ErrModelUnavailable, struct {
					Model string
				}{"scorer"})
			}

			space, err := loadSpace()
			if err != nil {
				return err
			}

			source, err := newCollector()
			if err != nil {
				return err
			}
			defer closeCollector(source)

			snap, err := source.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			candidates := recommend.NewSearch(scorer).Recommend(cmd.Context(), snap, label, space.First(cfg.GridLimit), cfg.TopK)
			if len(candidates) == 0 {
				logger.Warn().Str("workload", label.String()).Msg("No candidates scored")
				return nil
			}

			out := cmd.OutOrStdout()
			for i, c := range candidates {
				fmt.Fprintf(out, "%d. score=%.4f %s\n", i+1, c.Score, c.Point)
			}

			return nil
		},
	}
}
