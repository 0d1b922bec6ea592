// Package control runs the sample, classify and tune cycle.
package control

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/samplelog"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/sysctl"
	"codeberg.org/mutker/kerntune/internal/telemetry"
	"codeberg.org/mutker/kerntune/internal/workload"
	"k8s.io/utils/clock"
)

const (
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrCapture         = errors.ErrorCode("control_capture_failed")
	ErrShutdown        = errors.ErrShutdownFailed
)

type Source interface {
	Snapshot(ctx context.Context) (*snapshot.Snapshot, error)
}

type Labeler interface {
	Classify(ctx context.Context, snap *snapshot.Snapshot) workload.Label
}

type Proposer interface {
	Propose(ctx context.Context, snap *snapshot.Snapshot, label workload.Label) params.Point
}

type Applier interface {
	ApplyPoint(ctx context.Context, p params.Point) sysctl.Report
}

// Loop reacts to workload changes. Only a change of label triggers a
// recommendation; a change into unknown is recorded but not acted on.
type Loop struct {
	source   Source
	labeler  Labeler
	proposer Proposer
	applier  Applier
	log      samplelog.Writer
	clock    clock.WithTicker
	interval time.Duration
	monitor  bool

	mu    sync.Mutex
	state State
	last  workload.Label
}

type Option func(*Loop)

// WithMonitor classifies and logs without recommending or applying.
func WithMonitor(monitor bool) Option {
	return func(l *Loop) {
		l.monitor = monitor
	}
}

func WithClock(c clock.WithTicker) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithSampleLog records every tick's snapshot.
func WithSampleLog(w samplelog.Writer) Option {
	return func(l *Loop) {
		l.log = w
	}
}

func New(interval time.Duration, source Source, labeler Labeler, proposer Proposer, applier Applier, opts ...Option) (*Loop, error) {
	if interval <= 0 {
		return nil, errors.New().WithData(ErrInvalidInterval, struct {
			Interval time.Duration
		}{interval})
	}

	l := &Loop{
		source:   source,
		labeler:  labeler,
		proposer: proposer,
		applier:  applier,
		log:      samplelog.Discard(),
		clock:    clock.RealClock{},
		interval: interval,
		state:    Idle,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// LastWorkload is the label seen on the most recent tick, empty before
// the first.
func (l *Loop) LastWorkload() workload.Label {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.last
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.mu.Unlock()

	if prev != s {
		logger.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("Control loop state change")
	}
}

// Tick runs one cycle. A capture failure ends the tick early; nothing
// else is returned as an error.
func (l *Loop) Tick(ctx context.Context) error {
	l.setState(Sample)
	snap, err := l.source.Snapshot(ctx)
	if err != nil {
		telemetry.ObserveTick("error")
		l.setState(Idle)
		return errors.New().Wrap(ErrCapture, err)
	}
	telemetry.ObserveTick("sampled")

	l.setState(Classify)
	label := l.labeler.Classify(ctx, snap)
	snap = snap.With(snapshot.FieldWorkloadType, snapshot.String(label.String()))

	if err := l.log.Append(ctx, snap); err != nil {
		logger.Warn().Err(err).Msg("Failed to record sample")
	}

	l.mu.Lock()
	prev := l.last
	l.last = label
	l.mu.Unlock()

	if label == prev {
		l.setState(Idle)
		return nil
	}

	telemetry.ObserveTransition(prev.String(), label.String())
	logger.Info().
		Str("from", prev.String()).
		Str("to", label.String()).
		Msg("Workload changed")

	if l.monitor || !label.Concrete() {
		l.setState(Idle)
		return nil
	}

	l.setState(Recommend)
	point := l.proposer.Propose(ctx, snap, label)
	if point.Empty() {
		logger.Info().Str("workload", label.String()).Msg("No recommendation, keeping current parameters")
		l.setState(Idle)
		return nil
	}

	if ctx.Err() != nil {
		logger.Info().Str("point", point.String()).Msg("Shutdown requested, skipping apply")
		l.setState(Idle)
		return nil
	}

	l.setState(Apply)
	report := l.applier.ApplyPoint(ctx, point)
	if !report.OK() {
		logger.Warn().
			Err(report.Err()).
			Strs("applied", report.Applied()).
			Msg("Some parameters could not be applied")
	} else {
		logger.Info().
			Str("workload", label.String()).
			Str("point", point.String()).
			Bool("dry_run", report.DryRun).
			Msg("Applied recommendation")
	}

	l.setState(Idle)

	return nil
}

// Run ticks every interval until ctx is done, then shuts down and closes
// the sample log.
func (l *Loop) Run(ctx context.Context) error {
	logger.Info().
		Dur("interval", l.interval).
		Bool("monitor", l.monitor).
		Msg("Starting control loop")

	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return l.shutdown()
		case <-ticker.C():
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	if err := l.Tick(ctx); err != nil {
		logger.Warn().Err(err).Msg("Tick failed")
	}
}

func (l *Loop) shutdown() error {
	l.setState(Shutdown)
	logger.Info().Msg("Control loop shutting down")

	if err := l.log.Close(); err != nil {
		return errors.New().Wrap(ErrShutdown, err)
	}

	return nil
}
