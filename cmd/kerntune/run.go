package main

import (
	"context"

	"codeberg.org/mutker/kerntune/internal/classifier"
	"codeberg.org/mutker/kerntune/internal/control"
	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/pid"
	"codeberg.org/mutker/kerntune/internal/telemetry"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Classify the running workload and tune kernel parameters as it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoop(cmd.Context())
		},
	}
}

func runLoop(parent context.Context) error {
	if err := pid.Write(cfg.PIDDir); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(cfg.PIDDir); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove pid file")
		}
	}()

	ctx, cancel := signalContext(parent)
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

	sampleLog, err := openSampleLog()
	if err != nil {
		return err
	}

	loop, err := control.New(
		cfg.Interval,
		source,
		classifier.New(loadModel("classifier", cfg.Models.Classifier)),
		strategy,
		applier,
		control.WithMonitor(cfg.Monitor),
		control.WithSampleLog(sampleLog),
	)
	if err != nil {
		closeSampleLog(sampleLog)
		return err
	}

	var originals map[string]string
	if !cfg.Monitor {
		originals = captureOriginals()
	} else {
		logger.Info().Msg("Monitor mode activated. Logging workload classification...")
	}

	go func() {
		if err := telemetry.Serve(ctx, cfg.MetricsAddr); err != nil {
			logger.Error().Err(err).Msg("Metrics endpoint stopped")
		}
	}()

	runErr := loop.Run(ctx)
	cleanup(applier, originals)

	if runErr != nil {
		return errors.New().Wrap(errors.ErrMainLoop, runErr)
	}

	return nil
}
