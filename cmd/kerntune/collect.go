package main

import (
	"codeberg.org/mutker/kerntune/internal/harness"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/workload"
	"github.com/spf13/cobra"
)

func newCollectCmd() *cobra.Command {
	var sweep bool

	cmd := &cobra.Command{
		Use:   "collect <label|all>",
		Short: "Record labelled training samples under a synthetic workload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			labels := workload.Labels()
			if args[0] != "all" {
				label, err := parseLabel(args[0])
				if err != nil {
					return err
				}
				labels = []workload.Label{label}
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			source, err := newCollector()
			if err != nil {
				return err
			}
			defer closeCollector(source)

			applier, err := newApplier()
			if err != nil {
				return err
			}

			var space *params.Space
			var originals map[string]string
			if sweep {
				if space, err = loadSpace(); err != nil {
					return err
				}
				originals = captureOriginals()
				defer cleanup(applier, originals)
			}

			out, err := openSampleLog()
			if err != nil {
				return err
			}
			defer closeSampleLog(out)

			res, err := harness.New(source).Sweep(ctx, harness.SweepConfig{
				Labels:   labels,
				Space:    space,
				Limit:    cfg.GridLimit,
				Duration: cfg.Sampling.Duration,
				Interval: cfg.Sampling.Interval,
				Workload: cfg.Workload.Options(),
			}, applier, out)
			if err != nil {
				return err
			}

			logger.Info().
				Int("batches", res.Batches).
				Int("samples", res.Samples).
				Int("skipped", res.Skipped).
				Str("path", cfg.SampleLog.Path).
				Msg("Collection complete")

			return nil
		},
	}

	cmd.Flags().BoolVar(&sweep, "sweep", false, "Apply each grid point before sampling")

	return cmd
}
