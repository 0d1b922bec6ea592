// Package classifier labels host snapshots with a workload class.
package classifier

import (
	"context"
	"math"

	"codeberg.org/mutker/kerntune/internal/features"
	"codeberg.org/mutker/kerntune/internal/logger"
	"codeberg.org/mutker/kerntune/internal/predict"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/workload"
)

type Classifier struct {
	model  predict.Model
	schema *features.Schema
}

func New(model predict.Model) *Classifier {
	return &Classifier{model: model, schema: features.Workload}
}

// Classify never fails: an absent model, a predictor error or an output it
// cannot decode all yield workload.Unknown.
func (c *Classifier) Classify(ctx context.Context, snap *snapshot.Snapshot) workload.Label {
	if !c.model.Available() {
		logger.Debug().Msg("No classifier loaded, workload unknown")
		return workload.Unknown
	}

	out, err := c.model.Predict(ctx, predict.Batch{
		Columns: c.schema.Columns(),
		Rows:    [][]float64{c.schema.Row(snap)},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Workload prediction failed")
		return workload.Unknown
	}

	label := Decode(out[0])
	if label == workload.Unknown {
		logger.Debug().Floats64("output", out[0]).Msg("Unrecognised classifier output")
	}

	return label
}

// Decode interprets a classifier output vector. A single value is a class
// index; one value per class is a score vector resolved by argmax, with
// the first maximum winning.
func Decode(vec []float64) workload.Label {
	labels := workload.Labels()

	switch len(vec) {
	case 1:
		v := vec[0]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return workload.Unknown
		}
		return workload.FromIndex(int(math.Round(v)))
	case len(labels):
		best := -1
		for i, v := range vec {
			if math.IsNaN(v) {
				continue
			}
			if best < 0 || v > vec[best] {
				best = i
			}
		}
		return workload.FromIndex(best)
	default:
		return workload.Unknown
	}
}
