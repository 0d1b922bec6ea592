package classifier_test

import (
	"context"
	stderrors "errors"
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/kerntune/internal/classifier"
	"codeberg.org/mutker/kerntune/internal/predict"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(out []float64) predict.Model {
	return predict.Loaded("classifier", predict.Func(func(_ context.Context, b predict.Batch) ([][]float64, error) {
		rows := make([][]float64, len(b.Rows))
		for i := range rows {
			rows[i] = out
		}
		return rows, nil
	}))
}

func TestDecode(t *testing.T) {
	assert.Equal(t, workload.IOBound, classifier.Decode([]float64{1}))
	assert.Equal(t, workload.Mixed, classifier.Decode([]float64{2.6}))
	assert.Equal(t, workload.Unknown, classifier.Decode([]float64{9}))
	assert.Equal(t, workload.Unknown, classifier.Decode([]float64{math.NaN()}))
	assert.Equal(t, workload.MemoryBound, classifier.Decode([]float64{0.1, 0.2, 0.6, 0.1}))
	assert.Equal(t, workload.CPUBound, classifier.Decode([]float64{0.4, 0.4, 0.1, 0.1}))
	assert.Equal(t, workload.Unknown, classifier.Decode([]float64{0.5, 0.5}))
	assert.Equal(t, workload.Unknown, classifier.Decode(nil))
}

func TestClassifyEmptySnapshot(t *testing.T) {
	var seen predict.Batch
	m := predict.Loaded("classifier", predict.Func(func(_ context.Context, b predict.Batch) ([][]float64, error) {
		seen = b
		return [][]float64{{0}}, nil
	}))

	label := classifier.New(m).Classify(context.Background(), snapshot.New(time.Now()))
	assert.Equal(t, workload.CPUBound, label)
	require.Len(t, seen.Rows, 1)
	assert.Len(t, seen.Rows[0], len(seen.Columns))
	for _, v := range seen.Rows[0] {
		assert.Zero(t, v)
	}
}

func TestClassifyWithoutModel(t *testing.T) {
	label := classifier.New(predict.None("classifier")).Classify(context.Background(), snapshot.New(time.Now()))
	assert.Equal(t, workload.Unknown, label)
}

func TestClassifyPredictorError(t *testing.T) {
	m := predict.Loaded("classifier", predict.Func(func(context.Context, predict.Batch) ([][]float64, error) {
		return nil, stderrors.New("model crashed")
	}))
	assert.Equal(t, workload.Unknown, classifier.New(m).Classify(context.Background(), snapshot.New(time.Now())))
}

func TestClassifyScoreVector(t *testing.T) {
	c := classifier.New(fixed([]float64{0, 0, 0, 1}))
	assert.Equal(t, workload.Mixed, c.Classify(context.Background(), snapshot.New(time.Now())))
}
