package harness

import (
	"context"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/features"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/samplelog"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/sysctl"
	"codeberg.org/mutker/kerntune/internal/workload"
	"github.com/google/uuid"
)

// PointApplier writes a parameter point to the kernel.
type PointApplier interface {
	ApplyPoint(ctx context.Context, p params.Point) sysctl.Report
}

// SweepConfig describes a training data run over labels and grid points.
type SweepConfig struct {
	Labels   []workload.Label
	Space    *params.Space
	Limit    int
	Duration time.Duration
	Interval time.Duration
	Workload workload.Options
}

// SweepResult counts what a sweep produced.
type SweepResult struct {
	Batches int
	Samples int
	Skipped int
}

// Sweep samples every label under every point of the bounded grid,
// applying each point first. Each batch is stamped with a run id and the
// columns of the settings that applied, then appended to out and flushed.
// Keys that fail to apply are logged and the batch is sampled without
// them; only a point where no key applied is skipped. A failing workload
// is logged and its samples are kept. A nil or empty space samples each
// label once without applying anything.
func (h *Harness) Sweep(ctx context.Context, cfg SweepConfig, applier PointApplier, out samplelog.Writer) (SweepResult, error) {
	var res SweepResult

	points := []params.Point{{}}
	if cfg.Space != nil && cfg.Space.Size() > 0 {
		points = cfg.Space.First(cfg.Limit)
	}

	logger.Info().
		Int("labels", len(cfg.Labels)).
		Int("points", len(points)).
		Dur("duration", cfg.Duration).
		Msg("Starting sweep")

	for _, label := range cfg.Labels {
		for _, p := range points {
			if err := ctx.Err(); err != nil {
				return res, errors.New().Wrap(ErrCanceled, err)
			}

			n, err := h.batch(ctx, cfg, label, p, applier, out)
			if errors.HasCode(err, ErrCanceled) {
				return res, err
			}
			if err != nil {
				logger.Warn().
					Err(err).
					Str("workload", label.String()).
					Str("point", p.String()).
					Msg("Sweep batch failed, skipping")
				res.Skipped++
				continue
			}

			res.Batches++
			res.Samples += n
		}
	}

	logger.Info().
		Int("batches", res.Batches).
		Int("samples", res.Samples).
		Int("skipped", res.Skipped).
		Msg("Sweep finished")

	return res, nil
}

func (h *Harness) batch(
	ctx context.Context,
	cfg SweepConfig,
	label workload.Label,
	p params.Point,
	applier PointApplier,
	out samplelog.Writer,
) (int, error) {
	errFactory := errors.New()

	if !p.Empty() {
		applied := applyAvailable(ctx, applier, p)
		if applied.Empty() {
			return 0, errFactory.WithData(ErrApplyFailed, struct {
				Point string
			}{p.String()})
		}
		p = applied
	}

	driver, err := workload.For(label, cfg.Workload)
	if err != nil {
		return 0, err
	}

	runID := uuid.NewString()
	samples, err := h.keepSamples(ctx, Request{
		Duration: cfg.Duration,
		Interval: cfg.Interval,
		Label:    label,
		Driver:   driver,
		Tags:     map[string]string{snapshot.FieldRunID: runID},
	})
	if err != nil {
		return 0, err
	}

	for _, s := range samples {
		features.Stamp(s, p)
	}

	if err := out.Append(ctx, samples...); err != nil {
		return 0, errFactory.Wrap(ErrSampleLog, err)
	}
	if err := out.Flush(); err != nil {
		return 0, errFactory.Wrap(ErrSampleLog, err)
	}

	logger.Debug().
		Str("run_id", runID).
		Str("workload", label.String()).
		Int("samples", len(samples)).
		Msg("Sweep batch recorded")

	return len(samples), nil
}
