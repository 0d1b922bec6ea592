// Package harness runs a workload while sampling host metrics and derives
// per-run performance figures from the samples.
package harness

import (
	"context"
	"math"
	"sort"
	"time"

	"codeberg.org/mutker/kerntune/internal/countdown"
	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/telemetry"
	"codeberg.org/mutker/kerntune/internal/workload"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
)

// Source captures one snapshot of the host.
type Source interface {
	Snapshot(ctx context.Context) (*snapshot.Snapshot, error)
}

// Request describes one sampling run.
type Request struct {
	Duration time.Duration
	Interval time.Duration
	Label    workload.Label
	// Driver generates load for the run. A nil driver samples an idle host.
	Driver workload.Driver
	// Tags are extra string fields set on every captured snapshot.
	Tags map[string]string
}

func (r Request) validate() error {
	if r.Duration <= 0 || r.Interval <= 0 {
		return errors.New().WithData(ErrInvalidRequest, struct {
			Duration time.Duration
			Interval time.Duration
		}{r.Duration, r.Interval})
	}

	return nil
}

type Harness struct {
	source Source
	clock  clock.Clock
}

type Option func(*Harness)

func WithClock(c clock.Clock) Option {
	return func(h *Harness) {
		h.clock = c
	}
}

func New(source Source, opts ...Option) *Harness {
	h := &Harness{source: source, clock: clock.RealClock{}}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Collect runs req.Driver for req.Duration on its own goroutine and
// captures a snapshot every req.Interval until the duration has elapsed.
// Capture failures are logged and skipped. The driver is always joined
// before returning; its error is returned alongside the samples. Every
// returned snapshot carries the same exec_time, cpu_avg and perf_score.
func (h *Harness) Collect(ctx context.Context, req Request) ([]*snapshot.Snapshot, error) {
	errFactory := errors.New()

	if err := req.validate(); err != nil {
		return nil, err
	}

	start := h.clock.Now()

	// Plain group: a sampling problem must not cancel the driver.
	var g errgroup.Group
	if req.Driver != nil {
		g.Go(func() error {
			return req.Driver.Run(ctx, req.Duration)
		})
	}

	var (
		samples  []*snapshot.Snapshot
		canceled error
	)

	for h.clock.Since(start) < req.Duration {
		snap, err := h.source.Snapshot(ctx)
		if err != nil {
			logger.Warn().Err(err).Str("workload", req.Label.String()).Msg("Snapshot capture failed, skipping sample")
		} else {
			snap.SetString(snapshot.FieldWorkloadType, req.Label.String())
			for k, v := range req.Tags {
				snap.SetString(k, v)
			}
			samples = append(samples, snap)
		}

		if err := countdown.Sleep(ctx, h.clock, req.Interval); err != nil {
			canceled = err
			break
		}
	}

	driverErr := g.Wait()
	elapsed := h.clock.Since(start).Seconds()

	execTime, cpuAvg, score := derive(samples, elapsed)

	logger.Debug().
		Str("workload", req.Label.String()).
		Int("samples", len(samples)).
		Float64("exec_time", execTime).
		Float64("cpu_avg", cpuAvg).
		Float64("perf_score", score).
		Msg("Sampling run finished")

	if len(samples) > 0 {
		telemetry.AddSamples(req.Label.String(), len(samples))
		telemetry.SetPerfScore(req.Label.String(), score)
	}

	var errs []error
	if canceled != nil {
		errs = append(errs, errFactory.Wrap(ErrCanceled, canceled))
	}
	if driverErr != nil {
		errs = append(errs, errFactory.WrapWithData(ErrWorkloadFailed, driverErr, struct {
			Workload string
		}{req.Label.String()}))
	}

	return samples, errors.Join(errs...)
}

// keepSamples runs Collect and downgrades a workload failure to a warning
// so the samples already captured are kept. Cancellation and invalid
// requests are still returned.
func (h *Harness) keepSamples(ctx context.Context, req Request) ([]*snapshot.Snapshot, error) {
	samples, err := h.Collect(ctx, req)
	if err == nil || errors.HasCode(err, ErrCanceled) || !errors.HasCode(err, ErrWorkloadFailed) {
		return samples, err
	}

	logger.Warn().
		Err(err).
		Str("workload", req.Label.String()).
		Int("samples", len(samples)).
		Msg("Workload failed, keeping captured samples")

	return samples, nil
}

// applyAvailable writes p and returns the part of it that took effect.
// Keys that failed are logged and left out.
func applyAvailable(ctx context.Context, applier PointApplier, p params.Point) params.Point {
	report := applier.ApplyPoint(ctx, p)
	if report.OK() {
		return p
	}

	failed := report.Failed()
	keys := make([]string, 0, len(failed))
	for k := range failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	logger.Warn().
		Err(report.Err()).
		Strs("failed", keys).
		Strs("applied", report.Applied()).
		Msg("Point applied partially")

	return p.Only(report.Applied()...)
}

// derive fills the per-run fields on every sample and returns them.
func derive(samples []*snapshot.Snapshot, elapsed float64) (execTime, cpuAvg, score float64) {
	execTime = elapsed

	var sum float64
	var n int
	for _, s := range samples {
		if v, ok := s.Number(snapshot.FieldCPUPercent); ok && v >= 0 {
			sum += v
			n++
		}
	}
	if n > 0 {
		cpuAvg = sum / float64(n)
	}

	score = PerfScore(execTime, cpuAvg)

	for _, s := range samples {
		s.SetNumber(snapshot.FieldExecTime, execTime)
		s.SetNumber(snapshot.FieldCPUAvg, cpuAvg)
		s.SetNumber(snapshot.FieldPerfScore, score)
	}

	return execTime, cpuAvg, score
}

// PerfScore weights throughput (the reciprocal of execTime) against CPU
// utilisation. A zero execTime contributes nothing.
func PerfScore(execTime, cpuAvg float64) float64 {
	var throughput float64
	if execTime > 0 {
		throughput = 1 / execTime
	}

	return round2(0.6*throughput + 0.4*(cpuAvg/100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
