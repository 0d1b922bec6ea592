// Package predict wraps the opaque statistical models kerntune consults.
package predict

import (
	"context"

	"codeberg.org/mutker/kerntune/internal/errors"
)

// Batch is a set of rows sharing one column layout.
type Batch struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// Predictor maps each input row to an output vector.
type Predictor interface {
	Predict(ctx context.Context, batch Batch) ([][]float64, error)
}

// Model is a named handle that may or may not hold a loaded predictor.
// The zero value is an absent model.
type Model struct {
	name string
	impl Predictor
}

// None returns an absent model handle.
func None(name string) Model {
	return Model{name: name}
}

// Loaded wraps p in a model handle.
func Loaded(name string, p Predictor) Model {
	return Model{name: name, impl: p}
}

func (m Model) Name() string {
	return m.name
}

// Available reports whether a predictor is loaded.
func (m Model) Available() bool {
	return m.impl != nil
}

// Predict runs the batch and checks one output vector per row.
func (m Model) Predict(ctx context.Context, batch Batch) ([][]float64, error) {
	errFactory := errors.New()

	if m.impl == nil {
		return nil, errFactory.WithData(ErrModelUnavailable, struct {
			Model string
		}{m.name})
	}
	if len(batch.Rows) == 0 {
		return nil, nil
	}

	out, err := m.impl.Predict(ctx, batch)
	if err != nil {
		return nil, errFactory.WrapWithData(ErrPredictFailed, err, struct {
			Model string
		}{m.name})
	}
	if len(out) != len(batch.Rows) {
		return nil, errFactory.WithData(ErrShapeMismatch, struct {
			Model   string
			Rows    int
			Outputs int
		}{m.name, len(batch.Rows), len(out)})
	}

	return out, nil
}

// Func adapts a function to Predictor.
type Func func(ctx context.Context, batch Batch) ([][]float64, error)

func (f Func) Predict(ctx context.Context, batch Batch) ([][]float64, error) {
	return f(ctx, batch)
}
