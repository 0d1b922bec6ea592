package harness

import (
	"context"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/workload"
)

const (
	PhaseBefore = "before"
	PhaseAfter  = "after"
)

// EvaluatedFields are compared between the two phases of an evaluation.
var EvaluatedFields = []string{"cpu_percent", "mem_percent", "write_bytes"}

// Proposer picks a point for a classified snapshot.
type Proposer interface {
	Propose(ctx context.Context, snap *snapshot.Snapshot, label workload.Label) params.Point
}

// Evaluation is the outcome of a before/after run.
type Evaluation struct {
	Label  workload.Label
	Point  params.Point
	Failed []string
	Before []*snapshot.Snapshot
	After  []*snapshot.Snapshot
	// Deltas holds mean(after) - mean(before) per evaluated field.
	Deltas map[string]float64
}

// Samples returns both phases in capture order.
func (e *Evaluation) Samples() []*snapshot.Snapshot {
	out := make([]*snapshot.Snapshot, 0, len(e.Before)+len(e.After))
	out = append(out, e.Before...)

	return append(out, e.After...)
}

// Evaluate samples req once untouched, asks proposer for a point based on
// the last baseline sample, applies it and samples req again. Point holds
// the settings that took effect; keys that failed to apply are listed in
// Failed. An empty or wholly failed proposal still runs the second phase
// so the deltas show run-to-run noise.
func (h *Harness) Evaluate(ctx context.Context, req Request, proposer Proposer, applier PointApplier) (*Evaluation, error) {
	errFactory := errors.New()

	ev := &Evaluation{Label: req.Label}

	before, err := h.keepSamples(ctx, withPhase(req, PhaseBefore))
	if err != nil {
		return nil, err
	}
	if len(before) == 0 {
		return nil, errFactory.WithData(ErrInvalidRequest, struct {
			Phase string
		}{PhaseBefore})
	}
	ev.Before = before

	proposed := proposer.Propose(ctx, before[len(before)-1], req.Label)
	if proposed.Empty() {
		logger.Warn().Str("workload", req.Label.String()).Msg("No recommendation available, evaluating baseline twice")
	} else {
		ev.Point = applyAvailable(ctx, applier, proposed)
		ev.Failed = missingKeys(proposed, ev.Point)
		if ev.Point.Empty() {
			logger.Warn().Str("workload", req.Label.String()).Msg("No setting applied, evaluating baseline twice")
		}
	}

	after, err := h.keepSamples(ctx, withPhase(req, PhaseAfter))
	if err != nil {
		return nil, err
	}
	ev.After = after

	ev.Deltas = make(map[string]float64, len(EvaluatedFields))
	for _, f := range EvaluatedFields {
		ev.Deltas[f] = round2(mean(after, f) - mean(before, f))
	}

	logger.Info().
		Str("workload", req.Label.String()).
		Str("point", ev.Point.String()).
		Interface("deltas", ev.Deltas).
		Msg("Evaluation finished")

	return ev, nil
}

func missingKeys(proposed, applied params.Point) []string {
	var out []string
	for _, s := range proposed.Settings() {
		if _, ok := applied.Get(s.Name); !ok {
			out = append(out, string(s.Name))
		}
	}

	return out
}

func withPhase(req Request, phase string) Request {
	tags := make(map[string]string, len(req.Tags)+1)
	for k, v := range req.Tags {
		tags[k] = v
	}
	tags[snapshot.FieldPhase] = phase
	req.Tags = tags

	return req
}

// mean averages the non-negative readings of field, 0 when there are none.
func mean(samples []*snapshot.Snapshot, field string) float64 {
	var sum float64
	var n int
	for _, s := range samples {
		if v, ok := s.Number(field); ok && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}

	return sum / float64(n)
}
