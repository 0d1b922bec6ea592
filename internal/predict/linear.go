package predict

import (
	"context"
	"os"
	"sort"

	"codeberg.org/mutker/kerntune/internal/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

type linearFile struct {
	Outputs []struct {
		Name      string             `yaml:"name"`
		Intercept float64            `yaml:"intercept"`
		Weights   map[string]float64 `yaml:"weights"`
	} `yaml:"outputs"`
}

// Linear computes X·W + b for each row. Input columns are matched by name;
// columns unknown to the model are ignored and missing ones read as 0.
type Linear struct {
	columns []string
	index   map[string]int
	outputs []string
	weights *mat.Dense
	bias    []float64
}

// NewLinear builds a model from per-output weights keyed by column.
func NewLinear(outputs []string, intercepts []float64, weights []map[string]float64) (*Linear, error) {
	if len(outputs) == 0 || len(outputs) != len(intercepts) || len(outputs) != len(weights) {
		return nil, errors.New().WithData(ErrInvalidModel, struct {
			Outputs int
		}{len(outputs)})
	}

	seen := make(map[string]struct{})
	var columns []string
	for _, w := range weights {
		for c := range w {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				columns = append(columns, c)
			}
		}
	}
	sort.Strings(columns)

	l := &Linear{
		columns: columns,
		index:   make(map[string]int, len(columns)),
		outputs: append([]string(nil), outputs...),
		bias:    append([]float64(nil), intercepts...),
	}
	for i, c := range columns {
		l.index[c] = i
	}

	if len(columns) > 0 {
		l.weights = mat.NewDense(len(columns), len(outputs), nil)
		for j, w := range weights {
			for c, v := range w {
				l.weights.Set(l.index[c], j, v)
			}
		}
	}

	return l, nil
}

// LoadLinear reads a YAML coefficient file.
func LoadLinear(path string) (*Linear, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrLoadModel, err)
	}

	var doc linearFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errFactory.Wrap(ErrInvalidModel, err)
	}

	names := make([]string, len(doc.Outputs))
	intercepts := make([]float64, len(doc.Outputs))
	weights := make([]map[string]float64, len(doc.Outputs))
	for i, o := range doc.Outputs {
		names[i] = o.Name
		intercepts[i] = o.Intercept
		weights[i] = o.Weights
	}

	return NewLinear(names, intercepts, weights)
}

// Outputs returns the output names in vector order.
func (l *Linear) Outputs() []string {
	return append([]string(nil), l.outputs...)
}

func (l *Linear) Predict(ctx context.Context, batch Batch) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := len(batch.Rows)
	outs := len(l.outputs)
	result := make([][]float64, rows)

	if rows == 0 {
		return result, nil
	}
	if l.weights == nil {
		for i := range result {
			result[i] = append([]float64(nil), l.bias...)
		}
		return result, nil
	}

	// map batch columns onto model columns
	colMap := make([]int, len(batch.Columns))
	for i, c := range batch.Columns {
		if j, ok := l.index[c]; ok {
			colMap[i] = j
		} else {
			colMap[i] = -1
		}
	}

	x := mat.NewDense(rows, len(l.columns), nil)
	for r, row := range batch.Rows {
		for i, v := range row {
			if i < len(colMap) && colMap[i] >= 0 {
				x.Set(r, colMap[i], v)
			}
		}
	}

	var y mat.Dense
	y.Mul(x, l.weights)

	for r := 0; r < rows; r++ {
		vec := make([]float64, outs)
		for j := 0; j < outs; j++ {
			vec[j] = y.At(r, j) + l.bias[j]
		}
		result[r] = vec
	}

	return result, nil
}
