package main

import (
	"fmt"
	"strings"

	"codeberg.org/mutker/kerntune/internal/harness"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/samplelog"
	"codeberg.org/mutker/kerntune/internal/workload"
	"github.com/spf13/cobra"
)

func newEvaluateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "evaluate <label>",
		Short: "Measure a workload before and after applying the recommended parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := parseLabel(args[0])
			if err != nil {
				return err
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

			space, err := loadSpace()
			if err != nil {
				return err
			}

			strategy, err := newStrategy(space)
			if err != nil {
				return err
			}

			driver, err := workload.For(label, cfg.Workload.Options())
			if err != nil {
				return err
			}

			originals := captureOriginals()
			defer cleanup(applier, originals)

			ev, err := harness.New(source).Evaluate(ctx, harness.Request{
				Duration: cfg.Sampling.Duration,
				Interval: cfg.Sampling.Interval,
				Label:    label,
				Driver:   driver,
			}, strategy, applier)
			if err != nil {
				return err
			}

			if output != "" {
				w, err := samplelog.OpenCSV(output, sampleColumns(), len(ev.Samples())+1, logger.Default())
				if err != nil {
					return err
				}
				if err := w.Append(ctx, ev.Samples()...); err != nil {
					closeSampleLog(w)
					return err
				}
				if err := w.Close(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "workload: %s\nparameters: %s\n", ev.Label, ev.Point)
			if len(ev.Failed) > 0 {
				fmt.Fprintf(out, "not applied: %s\n", strings.Join(ev.Failed, ", "))
			}
			for _, f := range harness.EvaluatedFields {
				fmt.Fprintf(out, "%s delta: %+.2f\n", f, ev.Deltas[f])
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write both phases' samples to this CSV file")

	return cmd
}
