package recommend_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"codeberg.org/mutker/kerntune/internal/features"
	"codeberg.org/mutker/kerntune/internal/params"
	"codeberg.org/mutker/kerntune/internal/predict"
	"codeberg.org/mutker/kerntune/internal/recommend"
	"codeberg.org/mutker/kerntune/internal/snapshot"
	"codeberg.org/mutker/kerntune/internal/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func swappinessGrid(t *testing.T, values ...int64) []params.Point {
	t.Helper()
	vals := make([]params.Value, len(values))
	for i, v := range values {
		vals[i] = params.Scalar(v)
	}
	space, err := params.NewSpace(params.Dimension{Name: params.Swappiness, Values: vals})
	require.NoError(t, err)

	return space.First(0)
}

// scoreBySwappiness scores each row by its vm_swappiness column, mapped
// through scores.
func scoreBySwappiness(scores map[float64]float64, calls *int) predict.Model {
	return predict.Loaded("scorer", predict.Func(func(_ context.Context, b predict.Batch) ([][]float64, error) {
		*calls++
		out := make([][]float64, len(b.Rows))
		for i, row := range b.Rows {
			out[i] = []float64{scores[features.Score.Get(row, "vm_swappiness")]}
		}
		return out, nil
	}))
}

func TestSearchOrdersByScore(t *testing.T) {
	grid := swappinessGrid(t, 10, 30, 60)
	calls := 0
	s := recommend.NewSearch(scoreBySwappiness(map[float64]float64{10: 0.2, 30: 0.9, 60: 0.5}, &calls))

	got := s.Recommend(context.Background(), snapshot.New(time.Now()), workload.CPUBound, grid, 5)

	require.Len(t, got, 3)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{1, 2, 0}, []int{got[0].Index, got[1].Index, got[2].Index})
	assert.InDelta(t, 0.9, got[0].Score, 1e-9)
	v, _ := got[0].Point.Get(params.Swappiness)
	assert.Equal(t, params.Scalar(30), v)
}

func TestSearchTiesKeepGridOrder(t *testing.T) {
	grid := swappinessGrid(t, 10, 30, 60, 90)
	calls := 0
	s := recommend.NewSearch(scoreBySwappiness(map[float64]float64{10: 0.1, 30: 0.7, 60: 0.7, 90: 0.7}, &calls))

	got := s.Recommend(context.Background(), snapshot.New(time.Now()), workload.IOBound, grid, 2)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 2, got[1].Index)
}

func TestSearchRowsCarryLabelAndCPUAvg(t *testing.T) {
	var batch predict.Batch
	m := predict.Loaded("scorer", predict.Func(func(_ context.Context, b predict.Batch) ([][]float64, error) {
		batch = b
		return [][]float64{{1}}, nil
	}))
	snap := snapshot.New(time.Now())
	snap.SetNumber("cpu_percent", 42)

	recommend.NewSearch(m).Recommend(context.Background(), snap, workload.MemoryBound, swappinessGrid(t, 10), 1)

	require.Len(t, batch.Rows, 1)
	row := batch.Rows[0]
	assert.Equal(t, features.Score.Columns(), batch.Columns)
	assert.InDelta(t, 42, features.Score.Get(row, "cpu_avg"), 0)
	assert.InDelta(t, 0, features.Score.Get(row, "exec_time"), 0)
	assert.InDelta(t, 2, features.Score.Get(row, "workload_type"), 0)
	assert.InDelta(t, 10, features.Score.Get(row, "vm_swappiness"), 0)
}

func TestSearchWithoutModel(t *testing.T) {
	s := recommend.NewSearch(predict.None("scorer"))
	assert.Empty(t, s.Recommend(context.Background(), snapshot.New(time.Now()), workload.Mixed, swappinessGrid(t, 10), 3))
}

func TestSearchPredictorError(t *testing.T) {
	m := predict.Loaded("scorer", predict.Func(func(context.Context, predict.Batch) ([][]float64, error) {
		return nil, stderrors.New("unavailable")
	}))
	got := recommend.NewSearch(m).Recommend(context.Background(), snapshot.New(time.Now()), workload.Mixed, swappinessGrid(t, 10, 20), 3)
	assert.Empty(t, got)
}

func TestGridSearchPropose(t *testing.T) {
	calls := 0
	s := recommend.NewSearch(scoreBySwappiness(map[float64]float64{10: 0.3, 30: 0.8}, &calls))
	space, err := params.NewSpace(params.Dimension{Name: params.Swappiness, Values: []params.Value{params.Scalar(10), params.Scalar(30)}})
	require.NoError(t, err)

	p := (&recommend.GridSearch{Search: s, Space: space, Limit: 100}).Propose(context.Background(), snapshot.New(time.Now()), workload.CPUBound)
	v, ok := p.Get(params.Swappiness)
	require.True(t, ok)
	assert.Equal(t, params.Scalar(30), v)
}

func TestRegressionDecodesPositionally(t *testing.T) {
	m := predict.Loaded("regressor", predict.Func(func(context.Context, predict.Batch) ([][]float64, error) {
		return [][]float64{{10000000, 500000, 10.4, 5, 300, 4096, 87380, 6291456}}, nil
	}))

	p := recommend.NewRegression(m).Recommend(context.Background(), snapshot.New(time.Now()))

	require.Equal(t, 6, p.Len())
	swap, _ := p.Get(params.Swappiness)
	assert.Equal(t, params.Scalar(10), swap)
	rmem, _ := p.Get(params.TCPRmem)
	assert.Equal(t, params.Triple{Min: 4096, Default: 87380, Max: 6291456}, rmem)
}

func TestRegressionTruncatesOutputs(t *testing.T) {
	m := predict.Loaded("regressor", predict.Func(func(context.Context, predict.Batch) ([][]float64, error) {
		return [][]float64{{6000000.9, 500000, 59.9, 20.7, 1500.5, 4096.9, 87380.5, 6291456.99}}, nil
	}))

	p := recommend.NewRegression(m).Recommend(context.Background(), snapshot.New(time.Now()))

	swap, _ := p.Get(params.Swappiness)
	assert.Equal(t, params.Scalar(59), swap)
	dirty, _ := p.Get(params.DirtyRatio)
	assert.Equal(t, params.Scalar(20), dirty)
	rmem, _ := p.Get(params.TCPRmem)
	assert.Equal(t, params.Triple{Min: 4096, Default: 87380, Max: 6291456}, rmem)
}

func TestRegressionShortOutput(t *testing.T) {
	m := predict.Loaded("regressor", predict.Func(func(context.Context, predict.Batch) ([][]float64, error) {
		return [][]float64{{1, 2, 3}}, nil
	}))
	assert.True(t, recommend.NewRegression(m).Recommend(context.Background(), snapshot.New(time.Now())).Empty())
	assert.True(t, recommend.NewRegression(predict.None("regressor")).Recommend(context.Background(), snapshot.New(time.Now())).Empty())
}

func TestRegressionProposeTagsLabel(t *testing.T) {
	var label float64
	m := predict.Loaded("regressor", predict.Func(func(_ context.Context, b predict.Batch) ([][]float64, error) {
		label = features.Regression.Get(b.Rows[0], "workload_type")
		return [][]float64{{1, 1, 1, 1, 1, 1, 1, 1}}, nil
	}))
	snap := snapshot.New(time.Now())

	p := recommend.NewRegression(m).Propose(context.Background(), snap, workload.IOBound)

	assert.False(t, p.Empty())
	assert.InDelta(t, 1, label, 0)
	_, tagged := snap.Get("workload_type")
	assert.False(t, tagged)
}

func TestNewStrategy(t *testing.T) {
	none := predict.None("model")

	s, err := recommend.NewStrategy(recommend.StrategySearch, none, none, params.DefaultSpace(), 10)
	require.NoError(t, err)
	assert.IsType(t, &recommend.GridSearch{}, s)

	s, err = recommend.NewStrategy(recommend.StrategyRegression, none, none, nil, 0)
	require.NoError(t, err)
	assert.IsType(t, &recommend.Regression{}, s)
	assert.True(t, s.Propose(context.Background(), snapshot.New(time.Now()), workload.CPUBound).Empty())

	_, err = recommend.NewStrategy("annealing", none, none, nil, 0)
	assert.Error(t, err)
}
