package main

import (
	"context"

	"codeberg.org/mutker/kerntune/internal/collector"
	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/gpu"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/predict"
	"codeberg.org/mutker/kerntune/internal/recommend"
	"codeberg.org/mutker/kerntune/internal/samplelog"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/sysctl"
	"codeberg.org/mutker/kerntune/internal/workload"
)

// sampleColumns is the sample log header for a new file.
func sampleColumns() []string {
	return samplelog.Columns(collector.Fields(), []string{
		snapshot.FieldWorkloadType,
		snapshot.FieldExecTime,
		snapshot.FieldCPUAvg,
		snapshot.FieldPerfScore,
		snapshot.FieldRunID,
		snapshot.FieldPhase,
	})
}

// newCollector opens the host metric source. A missing GPU leaves the
// gpu fields at their sentinel.
func newCollector() (*collector.Collector, error) {
	reader, err := gpu.New()
	if err != nil {
		logger.Info().Err(err).Msg("No NVIDIA GPU available, GPU metrics disabled")
	}

	c, err := collector.New(collector.Config{
		ProcRoot:   cfg.ProcRoot,
		SysRoot:    cfg.SysRoot,
		SysctlRoot: cfg.SysctlRoot,
		GPU:        reader,
	})
	if err != nil {
		if reader != nil {
			_ = reader.Shutdown()
		}
		return nil, errors.New().Wrap(errors.ErrInitApp, err)
	}

	return c, nil
}

func closeCollector(c *collector.Collector) {
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close collector")
	}
}

func newApplier() (*sysctl.Applier, error) {
	sink, err := sysctl.NewSink(cfg.Sink, cfg.SysctlRoot)
	if err != nil {
		return nil, err
	}

	return sysctl.NewApplier(sink, sysctl.WithDryRun(cfg.DryRun)), nil
}

func loadSpace() (*params.Space, error) {
	if cfg.GridFile == "" {
		return params.DefaultSpace(), nil
	}

	space, err := params.LoadGrid(cfg.GridFile)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrInitApp, err)
	}

	logger.Info().Str("path", cfg.GridFile).Int("points", space.Size()).Msg("Loaded parameter grid")

	return space, nil
}

// loadModel never fails: a model that cannot be loaded is treated as
// absent.
func loadModel(name string, mc predict.Config) predict.Model {
	m, err := predict.Load(name, mc)
	if err != nil {
		logger.Warn().Err(err).Str("model", name).Msg("Failed to load model, continuing without it")
		return predict.None(name)
	}

	return m
}

func newStrategy(space *params.Space) (recommend.Strategy, error) {
	return recommend.NewStrategy(
		cfg.Strategy,
		loadModel("regressor", cfg.Models.Regressor),
		loadModel("scorer", cfg.Models.Scorer),
		space,
		cfg.GridLimit,
	)
}

func openSampleLog() (samplelog.Writer, error) {
	return samplelog.Open(cfg.SampleLog, sampleColumns(), logger.Default())
}

func closeSampleLog(w samplelog.Writer) {
	if err := w.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close sample log")
	}
}

// parseLabel accepts a concrete workload label.
func parseLabel(s string) (workload.Label, error) {
	label, err := workload.Parse(s)
	if err != nil {
		return "", err
	}
	if !label.Concrete() {
		return "", errors.New().WithData(errors.ErrInvalidArgs, struct {
			Label string
		}{s})
	}

	return label, nil
}

func tunableKeys() []string {
	names := params.Names()
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = string(n)
	}

	return keys
}

// captureOriginals records the current tunables when they will need to
// be put back on exit.
func captureOriginals() map[string]string {
	if !cfg.RestoreOnExit || cfg.DryRun {
		return nil
	}

	originals := sysctl.Capture(cfg.SysctlRoot, tunableKeys())
	logger.Debug().Int("parameters", len(originals)).Msg("Captured original kernel parameters")

	return originals
}

// cleanup restores the parameters captured at startup.
func cleanup(applier *sysctl.Applier, originals map[string]string) {
	if len(originals) > 0 {
		report := applier.Apply(context.Background(), originals)
		if !report.OK() {
			logger.ErrorWithCode(errors.New().Wrap(errors.ErrRestore, report.Err())).Msg("Failed to restore kernel parameters")
		} else {
			logger.Info().Int("parameters", len(report.Applied())).Msg("Restored original kernel parameters")
		}
	}
	logger.Info().Msg("Exiting...")
}
