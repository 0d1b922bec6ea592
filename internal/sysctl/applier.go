package sysctl

import (
	"context"
	"sort"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/telemetry"
)

// Outcome is the result of writing one parameter.
type Outcome struct {
	Key   string
	Value string
	Err   error
}

// Report lists per-key outcomes in the order keys were attempted.
type Report struct {
	Outcomes []Outcome
	DryRun   bool
}

// Applied returns the keys written successfully.
func (r Report) Applied() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o.Key)
		}
	}

	return out
}

// Failed returns the failure per key.
func (r Report) Failed() map[string]error {
	out := make(map[string]error)
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out[o.Key] = o.Err
		}
	}

	return out
}

func (r Report) OK() bool {
	return len(r.Failed()) == 0
}

// Err joins all failures, or nil.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}

	return errors.Join(errs...)
}

// Applier writes parameter sets through a Sink, one key at a time. A key
// that fails does not stop the remaining keys and nothing is rolled back.
type Applier struct {
	sink   Sink
	dryRun bool
}

type Option func(*Applier)

// WithDryRun logs the would-be commands instead of writing.
func WithDryRun(dryRun bool) Option {
	return func(a *Applier) {
		a.dryRun = dryRun
	}
}

func NewApplier(sink Sink, opts ...Option) *Applier {
	a := &Applier{sink: sink}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Apply writes settings in ascending key order.
func (a *Applier) Apply(ctx context.Context, settings map[string]string) Report {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]string, len(keys))
	for i, k := range keys {
		pairs[i] = [2]string{k, settings[k]}
	}

	return a.apply(ctx, pairs)
}

// ApplyPoint writes p's settings in the point's order.
func (a *Applier) ApplyPoint(ctx context.Context, p params.Point) Report {
	settings := p.Settings()
	pairs := make([][2]string, len(settings))
	for i, s := range settings {
		pairs[i] = [2]string{string(s.Name), s.Value.String()}
	}

	return a.apply(ctx, pairs)
}

func (a *Applier) apply(ctx context.Context, pairs [][2]string) Report {
	// a started apply runs to completion
	ctx = context.WithoutCancel(ctx)

	report := Report{Outcomes: make([]Outcome, 0, len(pairs)), DryRun: a.dryRun}
	for _, kv := range pairs {
		key, value := kv[0], kv[1]
		outcome := Outcome{Key: key, Value: value}

		if a.dryRun {
			logger.Info().Str("command", Command(key, value)).Msg("Dry run, not applying")
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		outcome.Err = a.sink.Write(ctx, key, value)
		if outcome.Err != nil {
			logger.Warn().Err(outcome.Err).Str("key", key).Str("value", value).Msg("Failed to apply parameter")
			telemetry.ObserveApply(key, "failed")
		} else {
			logger.Info().Str("key", key).Str("value", value).Msg("Applied parameter")
			telemetry.ObserveApply(key, "applied")
		}

		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report
}
