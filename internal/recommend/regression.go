// Package recommend proposes kernel parameter settings for a workload.
package recommend

import (
	"context"
	"math"
	"time"

	"codeberg.org/mutker/kerntune/internal/features"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/predict"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/telemetry"
	"codeberg.org/mutker/kerntune/internal/workload"
)

// regressionOutputs is the positional layout of the regressor's output.
// The tcp_rmem triple spans the last three slots.
var regressionOutputs = []params.Name{
	params.SchedLatency,
	params.SchedMigrationCost,
	params.Swappiness,
	params.DirtyRatio,
	params.DirtyExpire,
}

const regressionWidth = 8

// Regression predicts a parameter point directly from a snapshot.
type Regression struct {
	model  predict.Model
	schema *features.Schema
}

func NewRegression(model predict.Model) *Regression {
	return &Regression{model: model, schema: features.Regression}
}

// Recommend returns an empty point when the model is absent, fails or
// produces a short vector.
func (r *Regression) Recommend(ctx context.Context, snap *snapshot.Snapshot) params.Point {
	if !r.model.Available() {
		logger.Debug().Msg("No regressor loaded, skipping recommendation")
		return params.Point{}
	}

	start := time.Now()
	defer func() {
		telemetry.ObserveRecommendation("regression", time.Since(start))
	}()

	out, err := r.model.Predict(ctx, predict.Batch{
		Columns: r.schema.Columns(),
		Rows:    [][]float64{r.schema.Row(snap)},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Parameter regression failed")
		return params.Point{}
	}

	p, ok := decodeRegression(out[0])
	if !ok {
		logger.Warn().Int("outputs", len(out[0])).Msg("Regressor output too short")
		return params.Point{}
	}

	return p
}

// Propose tags the snapshot with label and recommends for it.
func (r *Regression) Propose(ctx context.Context, snap *snapshot.Snapshot, label workload.Label) params.Point {
	return r.Recommend(ctx, snap.With(snapshot.FieldWorkloadType, snapshot.String(string(label))))
}

func decodeRegression(vec []float64) (params.Point, bool) {
	if len(vec) < regressionWidth {
		return params.Point{}, false
	}
	for _, v := range vec[:regressionWidth] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return params.Point{}, false
		}
	}

	settings := make([]params.Setting, 0, len(regressionOutputs)+1)
	for i, name := range regressionOutputs {
		settings = append(settings, params.Setting{Name: name, Value: params.Scalar(toInt(vec[i]))})
	}
	settings = append(settings, params.Setting{
		Name: params.TCPRmem,
		Value: params.Triple{
			Min:     toInt(vec[5]),
			Default: toInt(vec[6]),
			Max:     toInt(vec[7]),
		},
	})

	p, err := params.NewPoint(settings...)
	if err != nil {
		return params.Point{}, false
	}

	return p, true
}

// toInt truncates toward zero.
func toInt(v float64) int64 {
	return int64(v)
}
